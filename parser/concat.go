package parser

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/pkg/errors"
)

// ConcatReader presents an ordered list of segments as one read only,
// seekable stream. It owns the segments and closes all of them on Close.
type ConcatReader struct {
	segments []Segment

	// Guards global_position and current_idx which always change
	// together.
	mu sync.Mutex

	global_position int64

	// The segment expected to satisfy the next read. It is only advanced
	// when a segment is exhausted.
	current_idx int
}

func NewConcatReader(segments []Segment) *ConcatReader {
	return &ConcatReader{
		segments: slices.Clone(segments),
	}
}

// ForSegments concatenates the segments. A single segment is returned as
// is.
func ForSegments(segments ...Segment) (Segment, error) {
	switch len(segments) {
	case 0:
		return nil, ErrNoSegments
	case 1:
		return segments[0], nil
	}
	return NewConcatReader(segments), nil
}

// ForFiles opens each file for reading in order and concatenates them. If
// any file fails to open, the files opened so far are closed again.
func ForFiles(filenames ...string) (Segment, error) {
	segments := make([]Segment, 0, len(filenames))
	for _, filename := range filenames {
		segment, err := OpenFileSegment(filename)
		if err != nil {
			for _, s := range segments {
				s.Close()
			}
			return nil, errors.Wrapf(err, "While opening %v", filename)
		}
		segments = append(segments, segment)
	}

	return ForSegments(segments...)
}

func (self *ConcatReader) isOpen() bool {
	for _, s := range self.segments {
		if !s.IsOpen() {
			return false
		}
	}
	return true
}

// IsOpen is true only when every segment is open.
func (self *ConcatReader) IsOpen() bool {
	return self.isOpen()
}

// Size is the sum of all segment sizes. Segments are asked every time.
func (self *ConcatReader) Size() (int64, error) {
	total_size := int64(0)
	for _, s := range self.segments {
		size, err := s.Size()
		if err != nil {
			return 0, err
		}
		total_size += size
	}
	return total_size, nil
}

func (self *ConcatReader) Position() int64 {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.global_position
}

func (self *ConcatReader) Read(buf []byte) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if !self.isOpen() {
		return 0, ErrClosed
	}

	if len(buf) == 0 {
		return 0, nil
	}

	total_read := 0
	for total_read < len(buf) && self.current_idx < len(self.segments) {
		segment := self.segments[self.current_idx]
		n, err := segment.Read(buf[total_read:])
		total_read += n

		if err == io.EOF {
			self.current_idx++
			continue
		}

		if err != nil {
			self.global_position += int64(total_read)
			return total_read, err
		}

		// Move on as soon as the last byte was consumed so the next call
		// does not have to bounce off io.EOF first.
		exhausted, err := isExhausted(segment)
		if err != nil {
			self.global_position += int64(total_read)
			return total_read, err
		}

		if exhausted {
			self.current_idx++

		} else if n == 0 {
			break
		}
	}

	self.global_position += int64(total_read)

	if total_read > 0 {
		return total_read, nil
	}

	if self.current_idx >= len(self.segments) {
		return 0, io.EOF
	}
	return 0, io.ErrNoProgress
}

func isExhausted(segment Segment) (bool, error) {
	pos, err := segment.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, err
	}

	size, err := segment.Size()
	if err != nil {
		return false, err
	}
	return pos >= size, nil
}

// SetPosition moves to the global offset new_position. Segments before the
// target are left at their end, the ones after it at their start. Offsets
// past the end saturate at Size().
func (self *ConcatReader) SetPosition(new_position int64) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.setPosition(new_position)
}

func (self *ConcatReader) setPosition(new_position int64) error {
	if new_position < 0 {
		return errors.Wrapf(ErrNegativePosition, "position %v", new_position)
	}

	if !self.isOpen() {
		return ErrClosed
	}

	remaining := new_position
	located := false

	for i, segment := range self.segments {
		size, err := segment.Size()
		if err != nil {
			return err
		}

		var local_position int64
		switch {
		case located:
			local_position = 0

		case remaining <= size:
			self.current_idx = i
			local_position = remaining
			located = true

		default:
			remaining -= size
			local_position = size
		}

		_, err = segment.Seek(local_position, io.SeekStart)
		if err != nil {
			return err
		}
	}

	if !located {
		self.current_idx = len(self.segments)
		new_position -= remaining
	}

	self.global_position = new_position
	return nil
}

// SetSegmentPosition seeks to relative_offset within segment
// segment_idx. Indexes past the last segment end up at Size().
func (self *ConcatReader) SetSegmentPosition(
	segment_idx int, relative_offset int64) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	new_position := relative_offset
	for i := 0; i < segment_idx && i < len(self.segments); i++ {
		size, err := self.segments[i].Size()
		if err != nil {
			return err
		}
		new_position += size
	}

	return self.setPosition(new_position)
}

func (self *ConcatReader) Seek(offset int64, whence int) (int64, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += self.global_position
	case io.SeekEnd:
		size, err := self.Size()
		if err != nil {
			return 0, err
		}
		offset += size
	default:
		return 0, errors.Errorf("Seek: invalid whence %v", whence)
	}

	err := self.setPosition(offset)
	if err != nil {
		return 0, err
	}
	return self.global_position, nil
}

// Write always fails.
func (self *ConcatReader) Write(buf []byte) (int, error) {
	return 0, ErrReadOnly
}

// Truncate always fails.
func (self *ConcatReader) Truncate(size int64) error {
	return ErrReadOnly
}

// Close closes every segment even when some of them fail. The first
// failure is reported.
func (self *ConcatReader) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	var first error
	for _, s := range self.segments {
		err := s.Close()
		if err != nil && first == nil {
			first = err
		}
	}

	if first != nil {
		return errors.Wrap(first, "failed to close wrapped segment")
	}
	return nil
}

func (self *ConcatReader) Debug() {
	for _, s := range self.Stats().Segments {
		fmt.Printf("Segment %v: %v at %v (%v bytes)\n",
			s.Index, s.Name, s.VirtualOffset, s.Size)
	}
}
