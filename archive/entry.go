package archive

import (
	"github.com/Velocidex/go-splitarchive/sparse"
)

// Entry describes one archive member.
type Entry struct {
	Name     string `json:"Name"`
	Linkname string `json:"Linkname,omitempty"`
	Typeflag byte   `json:"Typeflag"`
	Mode     int64  `json:"Mode"`

	// Logical size. For sparse entries this is the reconstructed size.
	Size int64 `json:"Size"`

	// Number of data bytes following the header(s) in the archive.
	StoredSize int64 `json:"StoredSize"`

	// Offset of the entry's first header within the archive stream.
	HeaderOffset int64 `json:"HeaderOffset"`

	// Offset of the entry data within the archive stream.
	DataOffset int64 `json:"DataOffset"`

	Records sparse.Records `json:"-"`

	// Set for sparse entries only.
	Sparse *sparse.Map `json:"Sparse,omitempty"`
}

func (self *Entry) IsSparse() bool {
	return self.Sparse != nil
}

// SparseFormat classifies the entry.
func (self *Entry) SparseFormat() sparse.Format {
	if self.Sparse == nil {
		return sparse.FormatNone
	}
	return self.Sparse.Format
}

// ReadableInPlace is false for sparse entries: their stored bytes are not
// the file contents and must go through reconstruction.
func (self *Entry) ReadableInPlace() bool {
	return self.Sparse == nil
}

func isHeaderOnlyType(flag byte) bool {
	switch flag {
	case sparse.TypeLink, sparse.TypeSymlink, sparse.TypeChar,
		sparse.TypeBlock, sparse.TypeDir, sparse.TypeFifo:
		return true
	}
	return false
}
