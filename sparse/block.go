package sparse

import (
	"bytes"
	"strconv"
)

const BlockSize = 512

const (
	TypeReg           = '0'
	TypeRegA          = '\x00'
	TypeLink          = '1'
	TypeSymlink       = '2'
	TypeChar          = '3'
	TypeBlock         = '4'
	TypeDir           = '5'
	TypeFifo          = '6'
	TypeCont          = '7'
	TypeXHeader       = 'x'
	TypeXGlobalHeader = 'g'
	TypeGNULongName   = 'L'
	TypeGNULongLink   = 'K'
	TypeGNUSparse     = 'S'
)

const (
	magicGNU   = "ustar  \x00"
	magicUSTAR = "ustar\x00"
)

// Field offsets within a header block.
const (
	nameOffset     = 0
	nameSize       = 100
	modeOffset     = 100
	sizeOffset     = 124
	chksumOffset   = 148
	typeflagOffset = 156
	linkOffset     = 157
	linkSize       = 100
	magicOffset    = 257
	prefixOffset   = 345
	prefixSize     = 155

	numericSize = 12
)

// Block is one raw 512 byte TAR record.
type Block [BlockSize]byte

func (self *Block) Typeflag() byte {
	return self[typeflagOffset]
}

func (self *Block) Name() string {
	name := cString(self[nameOffset : nameOffset+nameSize])
	if self.IsUSTAR() {
		prefix := cString(self[prefixOffset : prefixOffset+prefixSize])
		if prefix != "" {
			name = prefix + "/" + name
		}
	}
	return name
}

func (self *Block) Linkname() string {
	return cString(self[linkOffset : linkOffset+linkSize])
}

func (self *Block) Mode() (int64, error) {
	return ParseNumeric(self[modeOffset : modeOffset+8])
}

// Size is the number of data bytes following the header in the archive.
// For sparse entries this is the stored size, not the logical size.
func (self *Block) Size() (int64, error) {
	return ParseNumeric(self[sizeOffset : sizeOffset+numericSize])
}

// IsGNU reports the "ustar  \x00" magic of the GNU formats. Only those
// carry the old sparse area.
func (self *Block) IsGNU() bool {
	return string(self[magicOffset:magicOffset+8]) == magicGNU
}

func (self *Block) IsUSTAR() bool {
	return string(self[magicOffset:magicOffset+6]) == magicUSTAR
}

func (self *Block) IsZero() bool {
	for _, c := range self {
		if c != 0 {
			return false
		}
	}
	return true
}

// Checksum returns the unsigned and signed sums of the block with the
// checksum field counted as spaces. Some old tars used signed bytes.
func (self *Block) Checksum() (unsigned, signed int64) {
	for i, c := range self {
		if i >= chksumOffset && i < chksumOffset+8 {
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return unsigned, signed
}

func (self *Block) VerifyChecksum() error {
	stored, err := parseOctal(self[chksumOffset : chksumOffset+8])
	if err != nil {
		return err
	}

	unsigned, signed := self.Checksum()
	if stored != unsigned && stored != signed {
		return formatErrorf(nil, "header checksum mismatch")
	}
	return nil
}

// SetChecksum stores the checksum in the octal format used by GNU tar.
func (self *Block) SetChecksum() {
	unsigned, _ := self.Checksum()
	field := self[chksumOffset : chksumOffset+8]
	copy(field, []byte(formatOctal(unsigned, 7)))
	field[7] = ' '
}

func formatOctal(value int64, width int) string {
	res := strconv.FormatInt(value, 8)
	for len(res) < width-1 {
		res = "0" + res
	}
	return res + "\x00"
}

// ParseNumeric decodes a numeric header field, either NUL/space padded
// octal ASCII or the GNU base-256 encoding flagged by the high bit.
func ParseNumeric(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		// Base-256 is big endian two's complement with the flag bit
		// cleared.
		var inv byte
		if b[0]&0x40 != 0 {
			inv = 0xff
		}

		var x uint64
		for i, c := range b {
			c ^= inv
			if i == 0 {
				c &= 0x7f
			}
			if (x >> 56) > 0 {
				return 0, formatErrorf(nil, "numeric field overflow")
			}
			x = x<<8 | uint64(c)
		}
		if (x >> 63) > 0 {
			return 0, formatErrorf(nil, "numeric field overflow")
		}
		if inv == 0xff {
			return ^int64(x), nil
		}
		return int64(x), nil
	}

	return parseOctal(b)
}

func parseOctal(b []byte) (int64, error) {
	b = bytes.Trim(b, " \x00")
	if len(b) == 0 {
		return 0, nil
	}

	x, err := strconv.ParseUint(string(b), 8, 63)
	if err != nil {
		return 0, formatErrorf(err, "invalid octal field %q", b)
	}
	return int64(x), nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
