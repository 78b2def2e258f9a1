package compressor

import (
	"errors"
	"fmt"
)

// ErrUnreadableImage is returned when the input cannot be parsed as an image.
var ErrUnreadableImage = errors.New("unreadable image")

// ErrOutputExists is returned when the output path is taken by another file.
var ErrOutputExists = errors.New("output file already exists")

// CompressionError reports a failed decode, resize, encode or write step.
// The original file is left untouched whenever this error is returned.
type CompressionError struct {
	Op   string
	Path string
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compress %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

func failure(op, path string, err error) error {
	return &CompressionError{Op: op, Path: path, Err: err}
}
