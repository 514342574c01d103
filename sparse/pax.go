package sparse

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Keywords for GNU sparse files in a PAX extended header.
const (
	PAXGNUSparseNumBlocks = "GNU.sparse.numblocks"
	PAXGNUSparseOffset    = "GNU.sparse.offset"
	PAXGNUSparseNumBytes  = "GNU.sparse.numbytes"
	PAXGNUSparseMap       = "GNU.sparse.map"
	PAXGNUSparseName      = "GNU.sparse.name"
	PAXGNUSparseMajor     = "GNU.sparse.major"
	PAXGNUSparseMinor     = "GNU.sparse.minor"
	PAXGNUSparseSize      = "GNU.sparse.size"
	PAXGNUSparseRealSize  = "GNU.sparse.realsize"
)

// A Record is one PAX "key=value" record.
type Record struct {
	Key   string
	Value string
}

// Records keeps PAX records in archive order. Format 0.0 repeats the
// offset and numbytes keywords so a map would lose it.
type Records []Record

// Get returns the value of the last record for key.
func (self Records) Get(key string) (string, bool) {
	for i := len(self) - 1; i >= 0; i-- {
		if self[i].Key == key {
			return self[i].Value, true
		}
	}
	return "", false
}

func (self Records) Has(key string) bool {
	_, ok := self.Get(key)
	return ok
}

// Classify works out which GNU PAX sparse format, if any, the records
// describe. An explicit version other than 0.0, 0.1 or 1.0 is an error.
func Classify(records Records) (Format, error) {
	major, major_ok := records.Get(PAXGNUSparseMajor)
	minor, minor_ok := records.Get(PAXGNUSparseMinor)

	switch {
	case major_ok || minor_ok:
		version := major + "." + minor
		switch version {
		case "0.0":
			return FormatPAX00, nil
		case "0.1":
			return FormatPAX01, nil
		case "1.0":
			return FormatPAX10, nil
		}
		return FormatNone, errors.Wrapf(ErrUnsupportedVersion, "%q", version)

	// 0.0 and 0.1 predate the version records.
	case records.Has(PAXGNUSparseMap):
		return FormatPAX01, nil

	case records.Has(PAXGNUSparseOffset),
		records.Has(PAXGNUSparseNumBytes),
		records.Has(PAXGNUSparseSize):
		return FormatPAX00, nil
	}

	return FormatNone, nil
}

// DecodePAX decodes the sparse map described by the PAX records of an
// entry. For format 1.0 the map is read from the start of data, which is
// left at the first stored byte. A nil Map means the entry is not sparse.
func DecodePAX(records Records, data io.Reader) (*Map, error) {
	format, err := Classify(records)
	if err != nil || format == FormatNone {
		return nil, err
	}

	res := &Map{Format: format}
	res.Name, _ = records.Get(PAXGNUSparseName)

	res.RealSize, err = paxRealSize(records, format)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatPAX00:
		res.Extents, err = decodePAX00(records)
	case FormatPAX01:
		res.Extents, err = decodePAX01(records)
	case FormatPAX10:
		res.Extents, res.MapSize, err = decodePAX10(data)
	}
	if err != nil {
		return nil, err
	}

	if format != FormatPAX10 {
		err = checkNumBlocks(records, len(res.Extents))
		if err != nil {
			return nil, err
		}
	}

	err = res.Validate()
	if err != nil {
		return nil, err
	}
	return res, nil
}

func paxRealSize(records Records, format Format) (int64, error) {
	keys := []string{PAXGNUSparseSize, PAXGNUSparseRealSize}
	if format == FormatPAX10 {
		keys = []string{PAXGNUSparseRealSize, PAXGNUSparseSize}
	}

	for _, key := range keys {
		value, ok := records.Get(key)
		if !ok {
			continue
		}

		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil || size < 0 {
			return 0, formatErrorf(err, "invalid %v %q", key, value)
		}
		return size, nil
	}

	return 0, formatErrorf(nil, "%v sparse entry without a real size", format)
}

func checkNumBlocks(records Records, count int) error {
	value, ok := records.Get(PAXGNUSparseNumBlocks)
	if !ok {
		return nil
	}

	numblocks, err := strconv.ParseInt(value, 10, 0)
	if err != nil || numblocks != int64(count) {
		return formatErrorf(err, "%v is %q but the map has %d entries",
			PAXGNUSparseNumBlocks, value, count)
	}
	return nil
}

func parseDecimal(value string) (int64, error) {
	res, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, formatErrorf(err, "invalid sparse map number %q", value)
	}
	return res, nil
}

// decodePAX00 pairs up the repeated offset and numbytes records, which
// must strictly alternate starting with an offset.
func decodePAX00(records Records) ([]Extent, error) {
	var res []Extent
	var pending *Extent

	for _, record := range records {
		switch record.Key {
		case PAXGNUSparseOffset:
			if pending != nil {
				return nil, formatErrorf(nil, "%v without %v",
					PAXGNUSparseOffset, PAXGNUSparseNumBytes)
			}
			offset, err := parseDecimal(record.Value)
			if err != nil {
				return nil, err
			}
			pending = &Extent{Offset: offset}

		case PAXGNUSparseNumBytes:
			if pending == nil {
				return nil, formatErrorf(nil, "%v without %v",
					PAXGNUSparseNumBytes, PAXGNUSparseOffset)
			}
			numbytes, err := parseDecimal(record.Value)
			if err != nil {
				return nil, err
			}
			pending.NumBytes = numbytes
			res = append(res, *pending)
			pending = nil
		}
	}

	if pending != nil {
		return nil, formatErrorf(nil, "trailing %v without %v",
			PAXGNUSparseOffset, PAXGNUSparseNumBytes)
	}
	return res, nil
}

// decodePAX01 parses the comma separated offset,numbytes list.
func decodePAX01(records Records) ([]Extent, error) {
	value, _ := records.Get(PAXGNUSparseMap)
	if value == "" {
		return nil, nil
	}

	fields := strings.Split(value, ",")
	if len(fields)%2 != 0 {
		return nil, formatErrorf(nil, "%v has an odd number of fields",
			PAXGNUSparseMap)
	}

	res := make([]Extent, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		offset, err := parseDecimal(fields[i])
		if err != nil {
			return nil, err
		}
		numbytes, err := parseDecimal(fields[i+1])
		if err != nil {
			return nil, err
		}
		res = append(res, Extent{Offset: offset, NumBytes: numbytes})
	}
	return res, nil
}

// decodePAX10 reads the text map stored ahead of the file data: the
// number of entries, then an offset and a size per entry, one decimal per
// line, padded to the next block boundary. The GNU manual says octal but
// GNU tar writes decimal.
func decodePAX10(data io.Reader) ([]Extent, int64, error) {
	var buf bytes.Buffer
	var block Block
	var newlines int64
	var consumed int64

	// feed makes sure at least count unread lines are buffered.
	feed := func(count int64) error {
		for newlines < count {
			_, err := io.ReadFull(data, block[:])
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return formatErrorf(io.ErrUnexpectedEOF,
					"truncated 1.0 sparse map")
			}
			if err != nil {
				return err
			}
			consumed += BlockSize
			buf.Write(block[:])
			newlines += int64(bytes.Count(block[:], []byte("\n")))
		}
		return nil
	}

	next_token := func() string {
		newlines--
		token, _ := buf.ReadString('\n')
		return token[:len(token)-1]
	}

	err := feed(1)
	if err != nil {
		return nil, 0, err
	}

	count_str := next_token()
	count, err := strconv.ParseInt(count_str, 10, 0)
	if err != nil || count < 0 || int(2*count) < int(count) {
		return nil, 0, formatErrorf(err, "invalid 1.0 sparse map count %q",
			count_str)
	}

	err = feed(2 * count)
	if err != nil {
		return nil, 0, err
	}

	// count is backed by actual lines now.
	res := make([]Extent, 0, count)
	for i := int64(0); i < count; i++ {
		offset, err := parseDecimal(next_token())
		if err != nil {
			return nil, 0, err
		}
		numbytes, err := parseDecimal(next_token())
		if err != nil {
			return nil, 0, err
		}
		res = append(res, Extent{Offset: offset, NumBytes: numbytes})
	}

	return res, consumed, nil
}
