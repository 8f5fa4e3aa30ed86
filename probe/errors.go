package probe

import (
	"fmt"

	"github.com/pkg/errors"
)

// Causes a Backend wraps when it can't open a container.
var (
	ErrNotExist     = errors.New("no such file")
	ErrUnreadable   = errors.New("file not readable")
	ErrIsDirectory  = errors.New("is a directory")
	ErrNotContainer = errors.New("not a decodable media container")
)

// Causes of a QueryError.
var (
	ErrNotOpen        = errors.New("handle not open")
	ErrNoVideoStream  = errors.New("container has no video stream")
	ErrMalformedField = errors.New("malformed metadata field")
)

// OpenError is returned when a media file couldn't be opened. Nothing was
// acquired, so there is nothing to release.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening %q: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// QueryError is returned when an open container can't produce the frame
// count.
type QueryError struct {
	Path string
	// Metadata field being read, if the failure concerns one.
	Field string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("reading %s of %q: %v", e.Field, e.Path, e.Err)
	}
	return fmt.Sprintf("querying %q: %v", e.Path, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
