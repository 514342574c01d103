package sparse

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrFormat matches every malformed sparse map or header with errors.Is.
var ErrFormat = errors.New("sparse: invalid sparse map")

// FormatError describes why a sparse map was rejected. Err holds the
// underlying cause, if any.
type FormatError struct {
	Reason string
	Err    error
}

func (self *FormatError) Error() string {
	if self.Err != nil {
		return "sparse: " + self.Reason + ": " + self.Err.Error()
	}
	return "sparse: " + self.Reason
}

func (self *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (self *FormatError) Unwrap() error {
	return self.Err
}

// ErrUnsupportedVersion is returned for GNU.sparse.major/minor values
// other than 0.0, 0.1 and 1.0. It also matches ErrFormat.
var ErrUnsupportedVersion = &FormatError{
	Reason: "unsupported PAX sparse format version",
}

func formatErrorf(cause error, format string, args ...interface{}) error {
	return errors.WithStack(&FormatError{
		Reason: fmt.Sprintf(format, args...),
		Err:    cause,
	})
}
