// Package errs defines the control-plane error kinds shared by every
// component. Each kind is a concrete type rather than a sentinel value so
// that ManageAPI can recover the kind with errors.As and map it to a
// structured response without string matching.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds enumerated in the spec's error handling
// design. It never changes shape across components.
type Kind string

const (
	InvalidArgument                  Kind = "InvalidArgument"
	InvalidArgumentType              Kind = "InvalidArgumentType"
	MissingIdentifier                Kind = "MissingIdentifier"
	AlreadyExists                    Kind = "AlreadyExists"
	NotFound                         Kind = "NotFound"
	AccessDenied                     Kind = "AccessDenied"
	InaccessibleAccountNewBucketsPath Kind = "InaccessibleAccountNewBucketsPath"
	InvalidAccountDistinguishedName  Kind = "InvalidAccountDistinguishedName"
	AccountAccessKeyFlagComplexity   Kind = "AccountAccessKeyFlagComplexity"
	AccountSecretKeyFlagComplexity   Kind = "AccountSecretKeyFlagComplexity"
	AccountDeleteForbiddenHasBuckets Kind = "AccountDeleteForbiddenHasBuckets"
	AccessKeyAlreadyExists           Kind = "AccessKeyAlreadyExists"
	BucketCreationForbidden          Kind = "BucketCreationForbidden"
	UpgradeFailed                    Kind = "UpgradeFailed"
	UpgradeStatusFailed              Kind = "UpgradeStatusFailed"
	UpgradeHistoryFailed             Kind = "UpgradeHistoryFailed"
	InvalidUpgradeAction             Kind = "InvalidUpgradeAction"
	IO                               Kind = "IO"
	Malformed                        Kind = "Malformed"
)

// Error is the concrete error type carrying a Kind, a human-readable
// message, an optional cause string (surfaced verbatim to callers, e.g.
// UpgradeFailed{cause: "..."}), and an optional wrapped error.
type Error struct {
	kind  Kind
	msg   string
	cause string
	err   error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WithCause attaches a §4.3-style cause string (e.g. UpgradeFailed's
// free-form cause field) to the error.
func (e *Error) WithCause(cause string) *Error {
	e.cause = cause
	return e
}

// Wrap stamps the kind onto an underlying error, preserving its stack via
// pkg/errors so that callers that want `%+v` get a trace.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: errors.WithMessage(err, msg)}
}

func (e *Error) Error() string {
	if e.cause != "" {
		return fmt.Sprintf("%s: %s (cause: %s)", e.kind, e.msg, e.cause)
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.kind, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Cause() string { return e.cause }
func (e *Error) Message() string {
	if e.msg != "" {
		return e.msg
	}
	return e.Error()
}

// Stack renders the wrapped error's stack trace if one was attached via
// Wrap; used to populate in_progress_upgrade.error (spec §4.3).
func (e *Error) Stack() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%+v", e.err)
}

// As reports whether err (or anything it wraps) is an *Error and, if so,
// returns it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, or IO
// otherwise — the catch-all for unclassified filesystem/runtime failures.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return IO
}
