// Package errs defines the error kind taxonomy shared by every component of
// the orchestrator, so cmd/root.go can map any failure to an exit code
// without type-switching on concrete error types from each package.
package errs

import "fmt"

// Kind identifies which of the orchestrator's error categories an error
// belongs to.
type Kind string

const (
	Usage      Kind = "UsageError"
	Validation Kind = "ValidationError"
	Io         Kind = "IoError"
	Parse      Kind = "ParseError"
	Module     Kind = "ModuleError"
	Compile    Kind = "CompileError"
	Link       Kind = "LinkError"
	Internal   Kind = "InternalError"
)

// Error is a kinded, wrapped error. CompileError and LinkError additionally
// carry the subprocess exit code so the CLI can pass it through verbatim.
type Error struct {
	kind     Kind
	msg      string
	err      error
	ExitCode int
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// WithExitCode attaches a subprocess exit code, used by CompileError and
// LinkError so the driver can propagate it to the process exit status.
func WithExitCode(kind Kind, msg string, code int) *Error {
	return &Error{kind: kind, msg: msg, ExitCode: code}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// ExitStatus maps an error (kinded or not) to a process exit code per
// spec.md §7/§6: CompileError and LinkError propagate the compiler's own
// exit code, UsageError exits 1, every other orchestrator error exits 2.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if as(err, &e) {
		switch e.kind {
		case Compile, Link:
			if e.ExitCode != 0 {
				return e.ExitCode
			}
			return 1
		case Usage:
			return 1
		default:
			return 2
		}
	}
	return 2
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
