package archive

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Velocidex/go-splitarchive/sparse"
)

const (
	paxPath     = "path"
	paxLinkpath = "linkpath"
	paxSize     = "size"

	// Refuse PAX headers larger than this.
	maxPAXSize = 1 << 20
)

// parsePAX splits "%d %s=%s\n" records keeping their order.
func parsePAX(data string) (sparse.Records, error) {
	var res sparse.Records

	for len(data) > 0 {
		// The length field ends at the first space.
		sp := strings.IndexByte(data, ' ')
		if sp == -1 {
			return nil, errors.Wrap(ErrHeader, "PAX record without length")
		}

		n, err := strconv.ParseInt(data[:sp], 10, 0)
		if err != nil || n < 5 || int64(len(data)) < n || int64(sp)+1 >= n {
			return nil, errors.Wrapf(ErrHeader, "invalid PAX record length %q",
				data[:sp])
		}

		record, endline := data[sp+1:n-1], data[n-1:n]
		data = data[n:]
		if endline != "\n" {
			return nil, errors.Wrap(ErrHeader, "PAX record missing newline")
		}

		eq := strings.IndexByte(record, '=')
		if eq == -1 {
			return nil, errors.Wrapf(ErrHeader, "PAX record without key %q", record)
		}

		res = append(res, sparse.Record{
			Key:   record[:eq],
			Value: record[eq+1:],
		})
	}

	return res, nil
}

// mergeRecords applies src over dst. An empty value removes the keyword,
// repeated sparse keywords are kept in order.
func mergeRecords(dst, src sparse.Records) sparse.Records {
	res := append(sparse.Records(nil), dst...)
	for _, r := range src {
		if r.Value == "" {
			res = removeKey(res, r.Key)
			continue
		}
		res = append(res, r)
	}
	return res
}

func removeKey(records sparse.Records, key string) sparse.Records {
	res := records[:0]
	for _, r := range records {
		if r.Key != key {
			res = append(res, r)
		}
	}
	return res
}
