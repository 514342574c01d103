package parser

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// A Segment is one previously opened, seekable, sized byte source. The
// ConcatReader is itself a Segment so concatenations nest.
type Segment interface {
	io.Reader
	io.Seeker
	io.Closer

	Size() (int64, error)
	IsOpen() bool
}

// Segments that know where they came from may implement Namer. It is only
// used for stats.
type Namer interface {
	Name() string
}

// FileSegment is a Segment backed by an os.File opened for reading.
type FileSegment struct {
	fd *os.File

	mu     sync.Mutex
	closed bool
}

func OpenFileSegment(filename string) (*FileSegment, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	return &FileSegment{fd: fd}, nil
}

func (self *FileSegment) Name() string {
	return self.fd.Name()
}

func (self *FileSegment) Read(buf []byte) (int, error) {
	return self.fd.Read(buf)
}

func (self *FileSegment) Seek(offset int64, whence int) (int64, error) {
	return self.fd.Seek(offset, whence)
}

func (self *FileSegment) Size() (int64, error) {
	st, err := self.fd.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (self *FileSegment) IsOpen() bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	return !self.closed
}

func (self *FileSegment) Close() error {
	self.mu.Lock()
	self.closed = true
	self.mu.Unlock()

	return self.fd.Close()
}

// ReaderAtSegment gives an io.ReaderAt of known size its own cursor. The
// closer is called once on Close and may be nil.
type ReaderAtSegment struct {
	name   string
	reader io.ReaderAt
	size   int64
	closer func() error

	mu     sync.Mutex
	pos    int64
	closed bool
}

func NewReaderAtSegment(name string, reader io.ReaderAt, size int64,
	closer func() error) *ReaderAtSegment {
	return &ReaderAtSegment{
		name:   name,
		reader: reader,
		size:   size,
		closer: closer,
	}
}

func (self *ReaderAtSegment) Name() string {
	return self.name
}

func (self *ReaderAtSegment) Read(buf []byte) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.closed {
		return 0, os.ErrClosed
	}

	if self.pos >= self.size {
		return 0, io.EOF
	}

	to_read := int64(len(buf))
	available := self.size - self.pos
	if to_read > available {
		to_read = available
	}

	n, err := self.reader.ReadAt(buf[:to_read], self.pos)
	self.pos += int64(n)

	// Short reads at the end of the source are not errors, the next call
	// reports io.EOF.
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (self *ReaderAtSegment) Seek(offset int64, whence int) (int64, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.closed {
		return 0, os.ErrClosed
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += self.pos
	case io.SeekEnd:
		offset += self.size
	default:
		return 0, errors.Errorf("Seek: invalid whence %v", whence)
	}

	if offset < 0 {
		return 0, errors.Wrapf(ErrNegativePosition, "Seek: %v", offset)
	}

	self.pos = offset
	return offset, nil
}

func (self *ReaderAtSegment) Size() (int64, error) {
	return self.size, nil
}

func (self *ReaderAtSegment) IsOpen() bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	return !self.closed
}

func (self *ReaderAtSegment) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.closed {
		return nil
	}
	self.closed = true

	if self.closer != nil {
		return self.closer()
	}
	return nil
}
