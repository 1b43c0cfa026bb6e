package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for a config file with an unknown extension.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("config: invalid configuration")

// ParseError reports a config file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError lists every invalid value found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

// Is allows errors.Is to match ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}
