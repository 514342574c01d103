// Package archive walks the entries of a TAR stream far enough to hand
// sparse entries to the sparse package. The stream may be a
// parser.ConcatReader spanning several volumes.
package archive

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Velocidex/go-splitarchive/sparse"
)

var ErrHeader = errors.New("archive: invalid tar header")

// dataReader limits reads to the nb bytes of an entry's data.
type dataReader struct {
	r  io.Reader
	nb int64
}

func (self *dataReader) Read(buf []byte) (int, error) {
	if self.nb <= 0 {
		return 0, io.EOF
	}
	if int64(len(buf)) > self.nb {
		buf = buf[:self.nb]
	}

	n, err := self.r.Read(buf)
	self.nb -= int64(n)

	if err == io.EOF && self.nb > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

type Reader struct {
	r io.Reader

	// Bytes of the stream consumed so far.
	offset int64

	global sparse.Records

	// Unread data and padding of the current entry. offset stays at the
	// start of the data until the entry is skipped.
	data      *dataReader
	data_size int64
	pad       int64
	curr      io.Reader

	// I/O errors are sticky, sparse map errors only affect their entry.
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read implements io.Reader. Sparse entries are reconstructed.
func (self *Reader) Read(buf []byte) (int, error) {
	if self.err != nil {
		return 0, self.err
	}
	if self.curr == nil {
		return 0, io.EOF
	}

	n, err := self.curr.Read(buf)
	if err != nil && err != io.EOF && !errors.Is(err, sparse.ErrFormat) {
		self.err = err
	}
	return n, err
}

// Offset is the position in the archive stream. Within sparse entries it
// follows the stored data, not the reconstructed bytes.
func (self *Reader) Offset() int64 {
	if self.data != nil {
		return self.offset + self.data_size - self.data.nb
	}
	return self.offset
}

func (self *Reader) read(buf []byte) error {
	n, err := io.ReadFull(self.r, buf)
	self.offset += int64(n)
	return err
}

// skip discards n bytes, seeking when the stream allows.
func (self *Reader) skip(n int64) error {
	if n <= 0 {
		return nil
	}

	if seeker, ok := self.r.(io.Seeker); ok {
		_, err := seeker.Seek(n, io.SeekCurrent)
		if err == nil {
			self.offset += n
			return nil
		}
	}

	copied, err := io.CopyN(io.Discard, self.r, n)
	self.offset += copied
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// skipUnread moves past whatever is left of the current entry.
func (self *Reader) skipUnread() error {
	var remaining int64
	if self.data != nil {
		remaining = self.data.nb
		self.offset += self.data_size - remaining
	}

	err := self.skip(remaining + self.pad)
	self.data, self.data_size, self.pad, self.curr = nil, 0, 0, nil
	return err
}

func (self *Reader) readBlock(block *sparse.Block) error {
	err := self.read(block[:])
	if err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrHeader, "truncated header block")
	}
	return err
}

// Next advances to the next entry. A sparse map failure is returned for
// its entry only, the following call carries on with the next entry.
func (self *Reader) Next() (*Entry, error) {
	if self.err != nil {
		return nil, self.err
	}

	entry, err := self.next()
	if err != nil && err != io.EOF && !errors.Is(err, sparse.ErrFormat) {
		self.err = err
	}
	return entry, err
}

func (self *Reader) next() (*Entry, error) {
	err := self.skipUnread()
	if err != nil {
		return nil, err
	}

	var block sparse.Block
	var local sparse.Records
	var long_name, long_link string
	header_offset := int64(-1)

	for {
		if header_offset < 0 {
			header_offset = self.offset
		}

		err := self.readBlock(&block)
		if err != nil {
			return nil, err
		}

		if block.IsZero() {
			// Two zero blocks end the archive, but one is enough for
			// some writers.
			err = self.readBlock(&block)
			if err == io.EOF || (err == nil && block.IsZero()) {
				return nil, io.EOF
			}
			if err != nil {
				return nil, err
			}
			return nil, errors.Wrap(ErrHeader, "data after a zero block")
		}

		err = block.VerifyChecksum()
		if err != nil {
			return nil, errors.Wrapf(ErrHeader, "at offset %v: %v",
				self.offset-sparse.BlockSize, err)
		}

		size, err := block.Size()
		if err != nil || size < 0 {
			return nil, errors.Wrapf(ErrHeader, "invalid size: %v", err)
		}

		switch block.Typeflag() {
		case sparse.TypeXHeader, sparse.TypeXGlobalHeader:
			records, err := self.readPAX(size)
			if err != nil {
				return nil, err
			}
			if block.Typeflag() == sparse.TypeXGlobalHeader {
				self.global = mergeRecords(self.global, records)
			} else {
				local = append(local, records...)
			}
			continue

		case sparse.TypeGNULongName, sparse.TypeGNULongLink:
			value, err := self.readLong(size)
			if err != nil {
				return nil, err
			}
			if block.Typeflag() == sparse.TypeGNULongName {
				long_name = value
			} else {
				long_link = value
			}
			continue
		}

		entry := &Entry{
			Name:         block.Name(),
			Linkname:     block.Linkname(),
			Typeflag:     block.Typeflag(),
			HeaderOffset: header_offset,
			Records:      mergeRecords(self.global, local),
		}
		entry.Mode, _ = block.Mode()

		if long_name != "" {
			entry.Name = long_name
		}
		if long_link != "" {
			entry.Linkname = long_link
		}

		err = self.applyRecords(entry, &size)
		if err != nil {
			return nil, err
		}

		if isHeaderOnlyType(entry.Typeflag) {
			size = 0
		}
		entry.StoredSize = size
		entry.Size = size

		err = self.handleData(entry, &block)
		if err != nil {
			return nil, err
		}
		return entry, nil
	}
}

func (self *Reader) applyRecords(entry *Entry, size *int64) error {
	if value, ok := entry.Records.Get(paxPath); ok {
		entry.Name = value
	}
	if value, ok := entry.Records.Get(paxLinkpath); ok {
		entry.Linkname = value
	}
	if value, ok := entry.Records.Get(paxSize); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			return errors.Wrapf(ErrHeader, "invalid PAX size %q", value)
		}
		*size = parsed
	}
	return nil
}

func (self *Reader) readPAX(size int64) (sparse.Records, error) {
	if size > maxPAXSize {
		return nil, errors.Wrapf(ErrHeader, "PAX header of %v bytes", size)
	}

	buf := make([]byte, size)
	err := self.read(buf)
	if err != nil {
		return nil, unexpected(err)
	}

	err = self.skip(-size & (sparse.BlockSize - 1))
	if err != nil {
		return nil, err
	}

	return parsePAX(string(buf))
}

func (self *Reader) readLong(size int64) (string, error) {
	if size > maxPAXSize {
		return "", errors.Wrapf(ErrHeader, "long name of %v bytes", size)
	}

	buf := make([]byte, size)
	err := self.read(buf)
	if err != nil {
		return "", unexpected(err)
	}

	err = self.skip(-size & (sparse.BlockSize - 1))
	if err != nil {
		return "", err
	}

	for i, c := range buf {
		if c == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}

// handleData sets up the reader for the entry data. Extension blocks of
// old GNU sparse headers are consumed here, before the data starts.
func (self *Reader) handleData(entry *Entry, block *sparse.Block) error {
	var m *sparse.Map
	var err error

	if entry.Typeflag == sparse.TypeGNUSparse {
		counter := &countingReader{r: self.r}
		m, err = sparse.DecodeOldGNU(block, counter)
		self.offset += counter.n
	}

	entry.DataOffset = self.offset
	self.data = &dataReader{r: self.r, nb: entry.StoredSize}
	self.data_size = entry.StoredSize
	self.pad = -entry.StoredSize & (sparse.BlockSize - 1)

	if err != nil {
		return err
	}

	// The 1.0 map is read from the start of the data.
	if entry.Typeflag != sparse.TypeGNUSparse {
		m, err = sparse.DecodePAX(entry.Records, self.data)
		if err != nil {
			return err
		}
	}

	if m == nil {
		self.curr = self.data
		return nil
	}

	if isHeaderOnlyType(entry.Typeflag) {
		return errors.Wrapf(sparse.ErrFormat, "sparse map on a %q entry",
			entry.Typeflag)
	}

	if m.StoredSize() != entry.StoredSize-m.MapSize {
		return errors.Wrapf(sparse.ErrFormat,
			"sparse map describes %v stored bytes but the entry holds %v",
			m.StoredSize(), entry.StoredSize-m.MapSize)
	}

	self.curr, err = sparse.NewReader(m, self.data)
	if err != nil {
		return err
	}

	entry.Sparse = m
	entry.Size = m.RealSize
	if m.Name != "" {
		entry.Name = m.Name
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (self *countingReader) Read(buf []byte) (int, error) {
	n, err := self.r.Read(buf)
	self.n += int64(n)
	return n, err
}
