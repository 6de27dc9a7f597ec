package filesystem

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/apex/log"
)

type ErrorCode string

const (
	ErrCodeIsDirectory    ErrorCode = "E_ISDIR"
	ErrCodePathResolution ErrorCode = "E_BADPATH"
	ErrCodeDenylistFile   ErrorCode = "E_DENYLIST"
	ErrCodeExists         ErrorCode = "E_EXISTS"
	ErrCodeUnknownError   ErrorCode = "E_UNKNOWN"
)

// Error is a filesystem error that carries a code allowing the HTTP layer to
// decide how it should be presented to the caller.
type Error struct {
	code ErrorCode
	// Contains the underlying error leading to this. This value may or may not be
	// present, it is only set when a generic error is being wrapped.
	err error
	// This contains the specific path that was requested by the caller, before it
	// was resolved against the root.
	path string
	// If known, the path that the request resolved to.
	resolved string
}

// newFilesystemError returns a new error instance with a stack trace attached.
func newFilesystemError(code ErrorCode, err error) error {
	return errors.WithStackDepth(&Error{code: code, err: err}, 1)
}

// Code returns the ErrorCode for this specific error instance.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Error returns a human-readable error string to identify the Error by.
func (e *Error) Error() string {
	switch e.code {
	case ErrCodeIsDirectory:
		return fmt.Sprintf("filesystem: cannot write to [%s]: is a directory", e.path)
	case ErrCodeDenylistFile:
		r := e.path
		if e.resolved != "" {
			r = e.resolved
		}
		return fmt.Sprintf("filesystem: file access prohibited: [%s] is on the denylist", r)
	case ErrCodeExists:
		return fmt.Sprintf("filesystem: [%s] already exists", e.path)
	case ErrCodePathResolution:
		r := e.resolved
		if r == "" {
			r = "<empty>"
		}
		return fmt.Sprintf("filesystem: path [%s] resolves to a location outside the root: %s", e.path, r)
	case ErrCodeUnknownError:
		fallthrough
	default:
		return fmt.Sprintf("filesystem: an error occurred: %s", e.Unwrap())
	}
}

// Unwrap returns the underlying cause of this filesystem error. In some causes
// there may not be a cause present, in which case nil will be returned.
func (e *Error) Unwrap() error {
	return e.err
}

// Generates an error logger instance with some basic information.
func (fs *Filesystem) error(err error) *log.Entry {
	return log.WithField("subsystem", "filesystem").WithField("root", fs.root).WithField("error", err)
}

// NewBadPathResolution returns a new BadPathResolution error.
func NewBadPathResolution(path string, resolved string) error {
	return errors.WithStackDepth(&Error{code: ErrCodePathResolution, path: path, resolved: resolved}, 1)
}

// IsErrorCode checks if "err" is a filesystem Error type. If so, it will then
// drop in and check that the error code is the same as the provided ErrorCode
// passed in "code".
func IsErrorCode(err error, code ErrorCode) bool {
	var fserr *Error
	if errors.As(err, &fserr) {
		return fserr.code == code
	}
	return false
}

// IsPathError reports whether the error was caused by a path that escaped the
// root directory.
func IsPathError(err error) bool {
	return IsErrorCode(err, ErrCodePathResolution)
}
