package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// FormatError means the buffer is not a usable ELF image at all.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad image format: %s: %v", e.Reason, e.Err)
	}
	return "bad image format: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// UnsupportedError means the image was recognized but this loader cannot run it.
type UnsupportedError struct {
	Err error
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported image: %v", e.Err)
}

func (e *UnsupportedError) Unwrap() error { return e.Err }

// ResourceError covers allocation, storage and destination range failures.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// SnapshotUnavailable is reported by platform collectors. It never aborts a boot.
type SnapshotUnavailable struct {
	Snapshot string
	Err      error
}

func (e *SnapshotUnavailable) Error() string {
	return fmt.Sprintf("%s snapshot unavailable: %v", e.Snapshot, e.Err)
}

func (e *SnapshotUnavailable) Unwrap() error { return e.Err }

func Formatf(format string, a ...interface{}) error {
	return errors.WithStack(&FormatError{Reason: fmt.Sprintf(format, a...)})
}

func Resourcef(op, format string, a ...interface{}) error {
	return errors.WithStack(&ResourceError{Op: op, Err: errors.Errorf(format, a...)})
}

func WrapResource(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&ResourceError{Op: op, Err: err})
}

func IsFormat(err error) bool {
	var e *FormatError
	return errors.As(err, &e)
}

func IsUnsupported(err error) bool {
	var e *UnsupportedError
	return errors.As(err, &e)
}

func IsResource(err error) bool {
	var e *ResourceError
	return errors.As(err, &e)
}

func IsSnapshotUnavailable(err error) bool {
	var e *SnapshotUnavailable
	return errors.As(err, &e)
}
