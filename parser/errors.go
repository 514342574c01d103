package parser

import "github.com/pkg/errors"

var (
	// ErrClosed is returned when any wrapped segment has been closed.
	ErrClosed = errors.New("segment closed")

	// ErrNegativePosition is returned when seeking before the start.
	ErrNegativePosition = errors.New("negative position")

	// ErrReadOnly is returned by Write and Truncate.
	ErrReadOnly = errors.New("concatenated reader is read only")

	// ErrNoSegments is returned when there is nothing to concatenate.
	ErrNoSegments = errors.New("no segments to concatenate")
)
