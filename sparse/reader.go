package sparse

import (
	"io"
)

// reader expands stored extent data into the logical file, filling holes
// with zeros.
type reader struct {
	stored  io.Reader
	extents []Extent

	// Position in the logical file and its total size.
	pos int64
	tot int64
}

// NewReader returns a reader producing exactly m.RealSize bytes: each
// extent's bytes are read in order from stored, everything between them is
// zero. stored ending early is a format error.
func NewReader(m *Map, stored io.Reader) (io.Reader, error) {
	err := m.Validate()
	if err != nil {
		return nil, err
	}

	return &reader{
		stored:  stored,
		extents: m.DataExtents(),
		tot:     m.RealSize,
	}, nil
}

func (self *reader) readHole(buf []byte, end int64) int {
	n := end - self.pos
	if n > int64(len(buf)) {
		n = int64(len(buf))
	}
	clear(buf[:n])
	self.pos += n
	return int(n)
}

func (self *reader) Read(buf []byte) (int, error) {
	if len(self.extents) == 0 {
		if self.pos < self.tot {
			return self.readHole(buf, self.tot), nil
		}
		return 0, io.EOF
	}

	next := self.extents[0]
	if self.pos < next.Offset {
		return self.readHole(buf, next.Offset), nil
	}

	// Validate made sure End() does not overflow.
	end := next.End()
	left := end - self.pos
	if int64(len(buf)) > left {
		buf = buf[:left]
	}

	n, err := self.stored.Read(buf)
	self.pos += int64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		if self.pos < end {
			return n, formatErrorf(io.ErrUnexpectedEOF,
				"stored data ends at %v inside extent %v-%v",
				self.pos, next.Offset, end)
		}
		err = nil
	}

	if self.pos == end {
		self.extents = self.extents[1:]
	}
	return n, err
}
