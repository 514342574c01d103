// Package tartest builds raw TAR records for tests. It writes the
// sparse layouts GNU tar produces so the decoders can be checked against
// them without binary fixtures.
package tartest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Velocidex/go-splitarchive/sparse"
)

const (
	sizeOffset             = 124
	modeOffset             = 100
	typeflagOffset         = 156
	magicOffset            = 257
	oldGNUSparseOffset     = 386
	oldGNUIsExtendedOffset = 482
	oldGNURealSizeOffset   = 483
	extIsExtendedOffset    = 504
)

// Octal formats value as width-1 octal digits followed by a NUL.
func Octal(value int64, width int) []byte {
	return []byte(fmt.Sprintf("%0*o\x00", width-1, value))
}

// Header returns a GNU format header block.
func Header(name string, typeflag byte, size int64) *sparse.Block {
	block := &sparse.Block{}
	copy(block[0:100], name)
	copy(block[modeOffset:], Octal(0644, 8))
	copy(block[sizeOffset:], Octal(size, 12))
	block[typeflagOffset] = typeflag
	copy(block[magicOffset:], "ustar  \x00")
	block.SetChecksum()
	return block
}

func putEntries(area []byte, extents []sparse.Extent) {
	for i, e := range extents {
		copy(area[i*24:], Octal(e.Offset, 12))
		copy(area[i*24+12:], Octal(e.NumBytes, 12))
	}
}

// OldGNUHeader returns a type 'S' header with up to four inline entries.
func OldGNUHeader(name string, real_size, stored_size int64,
	extents []sparse.Extent, extended bool) *sparse.Block {
	block := Header(name, sparse.TypeGNUSparse, stored_size)
	putEntries(block[oldGNUSparseOffset:oldGNUIsExtendedOffset], extents)
	if extended {
		block[oldGNUIsExtendedOffset] = 1
	}
	copy(block[oldGNURealSizeOffset:], Octal(real_size, 12))
	block.SetChecksum()
	return block
}

// ExtensionBlock returns an old GNU extension block with up to 21
// entries.
func ExtensionBlock(extents []sparse.Extent, extended bool) *sparse.Block {
	block := &sparse.Block{}
	putEntries(block[:extIsExtendedOffset], extents)
	if extended {
		block[extIsExtendedOffset] = 1
	}
	return block
}

// Pad extends data with NULs to a whole number of blocks.
func Pad(data []byte) []byte {
	padding := -len(data) & (sparse.BlockSize - 1)
	res := make([]byte, len(data)+padding)
	copy(res, data)
	return res
}

// PAXRecords encodes records as "%d %s=%s\n" lines.
func PAXRecords(records sparse.Records) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		body := " " + r.Key + "=" + r.Value + "\n"
		size := len(body) + 1
		for len(strconv.Itoa(size))+len(body) != size {
			size++
		}
		buf.WriteString(strconv.Itoa(size) + body)
	}
	return buf.Bytes()
}

// PAXHeader returns an 'x' header followed by its padded records.
func PAXHeader(records sparse.Records) []byte {
	data := PAXRecords(records)
	header := Header("PaxHeaders/sparsefile", sparse.TypeXHeader,
		int64(len(data)))
	return append(header[:], Pad(data)...)
}

// PAX10Map returns the text map GNU tar stores ahead of 1.0 file data,
// padded to a block boundary.
func PAX10Map(extents []sparse.Extent) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\n", len(extents))
	for _, e := range extents {
		fmt.Fprintf(&buf, "%d\n%d\n", e.Offset, e.NumBytes)
	}
	return Pad(buf.Bytes())
}

// Pattern returns length bytes of non zero test data.
func Pattern(length int64) []byte {
	res := make([]byte, length)
	for i := range res {
		res[i] = byte(i%251) + 1
	}
	return res
}

// Archive joins entries and appends the two zero blocks ending an
// archive.
func Archive(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
	}
	buf.Write(make([]byte, 2*sparse.BlockSize))
	return buf.Bytes()
}

// The sparse file used by GNU tar's own tests: 2048 bytes at 0, 2560
// bytes at 1050624 and a hole up to 3101184.
var (
	SparseFileExtents = []sparse.Extent{
		{Offset: 0, NumBytes: 2048},
		{Offset: 1050624, NumBytes: 2560},
		{Offset: 3101184, NumBytes: 0},
	}

	SparseFileSize int64 = 3101184

	SparseFileStored int64 = 2048 + 2560
)

// The six extent file needing an extension block.
var (
	Sparse6Extents = []sparse.Extent{
		{Offset: 0, NumBytes: 1024},
		{Offset: 10240, NumBytes: 1024},
		{Offset: 16384, NumBytes: 1024},
		{Offset: 24576, NumBytes: 1024},
		{Offset: 29696, NumBytes: 1024},
		{Offset: 36864, NumBytes: 1024},
		{Offset: 51200, NumBytes: 0},
	}

	Sparse6Size int64 = 51200

	Sparse6Stored int64 = 6 * 1024
)

// OldGNUEntry is the old GNU encoding of SparseFileExtents with its data.
func OldGNUEntry(name string, data []byte) []byte {
	header := OldGNUHeader(name, SparseFileSize, SparseFileStored,
		SparseFileExtents, false)
	return append(header[:], Pad(data)...)
}

// OldGNUExtendedEntry spreads Sparse6Extents over the header and one
// extension block.
func OldGNUExtendedEntry(name string, data []byte) []byte {
	header := OldGNUHeader(name, Sparse6Size, Sparse6Stored,
		Sparse6Extents[:4], true)
	ext := ExtensionBlock(Sparse6Extents[4:], false)

	res := append(header[:], ext[:]...)
	return append(res, Pad(data)...)
}

// PAXEntry encodes SparseFileExtents in the PAX sparse format version
// ("0.0", "0.1" or "1.0") with its data.
func PAXEntry(version, name string, data []byte) []byte {
	var records sparse.Records
	var body []byte

	switch version {
	case "0.0":
		records = sparse.Records{
			{Key: sparse.PAXGNUSparseSize, Value: strconv.FormatInt(SparseFileSize, 10)},
			{Key: sparse.PAXGNUSparseNumBlocks, Value: strconv.Itoa(len(SparseFileExtents))},
		}
		for _, e := range SparseFileExtents {
			records = append(records,
				sparse.Record{Key: sparse.PAXGNUSparseOffset, Value: strconv.FormatInt(e.Offset, 10)},
				sparse.Record{Key: sparse.PAXGNUSparseNumBytes, Value: strconv.FormatInt(e.NumBytes, 10)})
		}

	case "0.1":
		var fields []string
		for _, e := range SparseFileExtents {
			fields = append(fields, strconv.FormatInt(e.Offset, 10),
				strconv.FormatInt(e.NumBytes, 10))
		}
		records = sparse.Records{
			{Key: sparse.PAXGNUSparseSize, Value: strconv.FormatInt(SparseFileSize, 10)},
			{Key: sparse.PAXGNUSparseNumBlocks, Value: strconv.Itoa(len(SparseFileExtents))},
			{Key: sparse.PAXGNUSparseName, Value: name},
			{Key: sparse.PAXGNUSparseMap, Value: strings.Join(fields, ",")},
		}

	case "1.0":
		records = sparse.Records{
			{Key: sparse.PAXGNUSparseMajor, Value: "1"},
			{Key: sparse.PAXGNUSparseMinor, Value: "0"},
			{Key: sparse.PAXGNUSparseName, Value: name},
			{Key: sparse.PAXGNUSparseRealSize, Value: strconv.FormatInt(SparseFileSize, 10)},
		}
		body = PAX10Map(SparseFileExtents)
	}

	body = append(body, data...)

	res := PAXHeader(records)
	header := Header("GNUSparseFile.0/"+name, sparse.TypeReg, int64(len(body)))
	res = append(res, header[:]...)
	return append(res, Pad(body)...)
}
