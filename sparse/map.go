// Package sparse decodes the sparse maps of GNU TAR sparse entries and
// reconstructs the original, hole filled file contents.
//
// Four encodings are understood: the old GNU header (type 'S') with its
// chained extension blocks, and the PAX based formats 0.0, 0.1 and 1.0.
// All of them decode to the same Map.
package sparse

import (
	"fmt"
	"math"
	"strings"
)

type Format int

const (
	FormatNone Format = iota
	FormatOldGNU
	FormatPAX00
	FormatPAX01
	FormatPAX10
)

func (self Format) String() string {
	switch self {
	case FormatNone:
		return "none"
	case FormatOldGNU:
		return "oldgnu"
	case FormatPAX00:
		return "pax-0.0"
	case FormatPAX01:
		return "pax-0.1"
	case FormatPAX10:
		return "pax-1.0"
	}
	return fmt.Sprintf("Format(%d)", int(self))
}

// IsPAX is true for the three PAX based formats.
func (self Format) IsPAX() bool {
	return self == FormatPAX00 || self == FormatPAX01 || self == FormatPAX10
}

// An Extent is a run of stored data at Offset in the reconstructed file.
type Extent struct {
	Offset   int64 `json:"Offset"`
	NumBytes int64 `json:"NumBytes"`
}

func (self Extent) End() int64 {
	return self.Offset + self.NumBytes
}

type Map struct {
	Format Format `json:"Format"`

	// From GNU.sparse.name, if the PAX header carried one.
	Name string `json:"Name,omitempty"`

	// The logical size of the reconstructed file.
	RealSize int64 `json:"RealSize"`

	// Extents in the order they were decoded. The legacy terminator entry
	// is kept as the last element.
	Extents []Extent `json:"Extents"`

	// Number of bytes at the start of the entry data taken up by the 1.0
	// text map. Zero for all other formats.
	MapSize int64 `json:"MapSize,omitempty"`
}

// DataExtents returns the extents carrying data.
func (self *Map) DataExtents() []Extent {
	res := make([]Extent, 0, len(self.Extents))
	for _, e := range self.Extents {
		if e.NumBytes > 0 {
			res = append(res, e)
		}
	}
	return res
}

// StoredSize is the number of data bytes the archive holds for the map.
func (self *Map) StoredSize() int64 {
	total := int64(0)
	for _, e := range self.Extents {
		total += e.NumBytes
	}
	return total
}

// Validate applies the same checks as BSD tar: extents are in order, do not
// overlap and stay within RealSize.
func (self *Map) Validate() error {
	if self.RealSize < 0 {
		return formatErrorf(nil, "negative real size %v", self.RealSize)
	}

	for i, e := range self.Extents {
		switch {
		case e.Offset < 0 || e.NumBytes < 0:
			return formatErrorf(nil, "extent %d is negative (%v/%v)",
				i, e.Offset, e.NumBytes)

		case e.Offset > math.MaxInt64-e.NumBytes:
			return formatErrorf(nil, "extent %d overflows", i)

		case e.End() > self.RealSize:
			return formatErrorf(nil, "extent %d (%v/%v) overruns size %v",
				i, e.Offset, e.NumBytes, self.RealSize)

		case i > 0 && e.Offset < self.Extents[i-1].Offset:
			return formatErrorf(nil, "extent %d offset %v regresses", i, e.Offset)

		case i > 0 && e.Offset < self.Extents[i-1].End():
			return formatErrorf(nil, "extent %d overlaps the previous one", i)
		}
	}
	return nil
}

func (self *Map) DebugString() string {
	result := []string{fmt.Sprintf("Sparse map %v RealSize %v Stored %v",
		self.Format, self.RealSize, self.StoredSize())}
	if self.Name != "" {
		result = append(result, fmt.Sprintf("  Name %v", self.Name))
	}
	for i, e := range self.Extents {
		result = append(result, fmt.Sprintf("  %d: %v-%v (%v bytes)",
			i, e.Offset, e.End(), e.NumBytes))
	}
	return strings.Join(result, "\n")
}

func (self *Map) Debug() {
	fmt.Println(self.DebugString())
}
