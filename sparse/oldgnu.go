package sparse

import (
	"io"
)

// Layout of the old GNU sparse area.
const (
	oldGNUSparseOffset     = 386
	oldGNUIsExtendedOffset = 482
	oldGNURealSizeOffset   = 483
	oldGNUNumEntries       = 4

	extNumEntries       = 21
	extIsExtendedOffset = 504

	sparseEntrySize = 2 * numericSize

	// GNU tar never needs this many. It bounds what a corrupt chain can
	// make us read.
	maxExtensionBlocks = 1 << 20
)

// extensionChain hands out the extension blocks following an old GNU sparse
// header one at a time, reusing a single buffer.
type extensionChain struct {
	reader io.Reader
	block  Block
	count  int
}

func (self *extensionChain) next() (*Block, error) {
	if self.count >= maxExtensionBlocks {
		return nil, formatErrorf(nil, "too many sparse extension blocks")
	}

	_, err := io.ReadFull(self.reader, self.block[:])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, formatErrorf(io.ErrUnexpectedEOF,
			"sparse extension block %d missing", self.count)
	}
	if err != nil {
		return nil, err
	}

	self.count++
	return &self.block, nil
}

type pairCollector struct {
	extents []Extent
	done    bool
}

// collect parses count sparse entries from area. An empty offset field is
// padding and ends the map, as in GNU and BSD tar. A zero length entry
// after a real one is the terminator: it is kept and nothing after it is.
func (self *pairCollector) collect(area []byte, count int) error {
	for i := 0; i < count && !self.done; i++ {
		entry := area[i*sparseEntrySize : (i+1)*sparseEntrySize]
		if entry[0] == 0 {
			self.done = true
			break
		}

		offset, err := ParseNumeric(entry[:numericSize])
		if err != nil {
			return err
		}

		numbytes, err := ParseNumeric(entry[numericSize:])
		if err != nil {
			return err
		}

		self.extents = append(self.extents, Extent{
			Offset:   offset,
			NumBytes: numbytes,
		})

		if numbytes == 0 && len(self.extents) > 1 {
			self.done = true
		}
	}
	return nil
}

// DecodeOldGNU reads the sparse map of an old GNU sparse header. While the
// isextended flag is set, further blocks are read from next. Those are
// consumed to the end of the chain even after the map terminated or failed
// to parse, so next is left at the start of the entry data.
func DecodeOldGNU(header *Block, next io.Reader) (*Map, error) {
	if header.Typeflag() != TypeGNUSparse {
		return nil, formatErrorf(nil, "typeflag %q is not a GNU sparse file",
			header.Typeflag())
	}

	// STAR uses the same type flag with a different layout.
	if !header.IsGNU() {
		return nil, formatErrorf(nil, "sparse header without GNU magic")
	}

	// The first parse error is only reported once the chain is drained.
	real_size, parse_err := ParseNumeric(
		header[oldGNURealSizeOffset : oldGNURealSizeOffset+numericSize])

	collector := &pairCollector{}
	if parse_err == nil {
		parse_err = collector.collect(
			header[oldGNUSparseOffset:oldGNUIsExtendedOffset], oldGNUNumEntries)
	}

	chain := &extensionChain{reader: next}
	is_extended := header[oldGNUIsExtendedOffset] != 0
	for is_extended {
		block, err := chain.next()
		if err != nil {
			return nil, err
		}

		if parse_err == nil {
			parse_err = collector.collect(
				block[:extIsExtendedOffset], extNumEntries)
		}
		is_extended = block[extIsExtendedOffset] != 0
	}

	if parse_err != nil {
		return nil, parse_err
	}

	res := &Map{
		Format:   FormatOldGNU,
		RealSize: real_size,
		Extents:  collector.extents,
	}

	err := res.Validate()
	if err != nil {
		return nil, err
	}
	return res, nil
}
