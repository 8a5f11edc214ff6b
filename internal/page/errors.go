// internal/page/errors.go
package page

import "errors"

var (
	// ErrNotInput is returned when a file upload targets anything but an input.
	ErrNotInput = errors.New("element is not an INPUT")
	// ErrFileNotFound is returned when the file to upload does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnknownOperation is returned by Do for an Operation it cannot serve.
	ErrUnknownOperation = errors.New("unknown operation")
)
