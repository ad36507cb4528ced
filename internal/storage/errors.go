package storage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an adapter error into one of the kinds the host is
// expected to branch on, without string matching.
type ErrorKind int

const (
	// KindNone marks a nil error's kind.
	KindNone ErrorKind = iota
	// KindNotFound — no such key visible to the caller.
	KindNotFound
	// KindDuplicateKey — insert collided and overwrite is false.
	KindDuplicateKey
	// KindDeadlock — snapshot-isolation update conflict; host must abort and retry.
	KindDeadlock
	// KindBusy — drop/rename/truncate target has open cursors.
	KindBusy
	// KindInvalidArgument — bad URI, key too long, unknown configuration.
	KindInvalidArgument
	// KindNotSupported — verify and other unimplemented operations.
	KindNotSupported
	// KindIOError — any underlying device failure that is not one of the above.
	KindIOError
	// KindPanic — post-condition violation during drop/rename; unrecoverable.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindDuplicateKey:
		return "duplicate-key"
	case KindDeadlock:
		return "deadlock"
	case KindBusy:
		return "busy"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindNotSupported:
		return "not-supported"
	case KindIOError:
		return "io-error"
	case KindPanic:
		return "panic"
	default:
		return "none"
	}
}

// Sentinel errors, one per kind, wrapped via fmt.Errorf("%w", ...) at call
// sites for context. Use errors.Is against these, or Code(err) for the kind.
var (
	ErrNotFound        = errors.New("kvsadapter: not found")
	ErrDuplicateKey    = errors.New("kvsadapter: duplicate key")
	ErrDeadlock        = errors.New("kvsadapter: write conflict, retry")
	ErrBusy            = errors.New("kvsadapter: object busy")
	ErrInvalidArgument = errors.New("kvsadapter: invalid argument")
	ErrNotSupported    = errors.New("kvsadapter: not supported")
	ErrIOError         = errors.New("kvsadapter: device I/O error")
	ErrPanic           = errors.New("kvsadapter: internal invariant violated")
)

// adapterError pairs a kind with a wrapped cause so Code() can recover the
// kind after fmt.Errorf("%w", ...) wrapping by a caller.
type adapterError struct {
	kind ErrorKind
	err  error
}

func (e *adapterError) Error() string { return e.err.Error() }
func (e *adapterError) Unwrap() error { return e.err }

// newKindError builds an error of the given kind carrying msg as context.
func newKindError(kind ErrorKind, sentinel error, format string, args ...any) error {
	if format == "" {
		return &adapterError{kind: kind, err: sentinel}
	}
	return &adapterError{kind: kind, err: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)}
}

func notFoundf(format string, args ...any) error {
	return newKindError(KindNotFound, ErrNotFound, format, args...)
}

func duplicateKeyf(format string, args ...any) error {
	return newKindError(KindDuplicateKey, ErrDuplicateKey, format, args...)
}

func deadlockf(format string, args ...any) error {
	return newKindError(KindDeadlock, ErrDeadlock, format, args...)
}

func busyf(format string, args ...any) error {
	return newKindError(KindBusy, ErrBusy, format, args...)
}

func invalidArgf(format string, args ...any) error {
	return newKindError(KindInvalidArgument, ErrInvalidArgument, format, args...)
}

func notSupportedf(format string, args ...any) error {
	return newKindError(KindNotSupported, ErrNotSupported, format, args...)
}

func ioErrorf(format string, args ...any) error {
	return newKindError(KindIOError, ErrIOError, format, args...)
}

func panicf(format string, args ...any) error {
	return newKindError(KindPanic, ErrPanic, format, args...)
}

// Code reports the ErrorKind of err: KindNone if err is nil, and KindIOError
// for an error that was not produced by this package. Wrapping with
// fmt.Errorf("%w", ...) preserves the kind as long as the adapter error
// itself remains in the chain.
func Code(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ae *adapterError
	if errors.As(err, &ae) {
		return ae.kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrDeadlock):
		return KindDeadlock
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotSupported):
		return KindNotSupported
	case errors.Is(err, ErrPanic):
		return KindPanic
	case errors.Is(err, ErrIOError):
		return KindIOError
	}
	return KindIOError
}

// combineErrors implements the propagation policy of §7: panic dominates;
// otherwise the first error wins except duplicate-key and not-found yield
// to harder errors encountered later.
func combineErrors(first, second error) error {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	if Code(first) == KindPanic {
		return first
	}
	if Code(second) == KindPanic {
		return second
	}
	firstSoft := Code(first) == KindNotFound || Code(first) == KindDuplicateKey
	secondSoft := Code(second) == KindNotFound || Code(second) == KindDuplicateKey
	if firstSoft && !secondSoft {
		return second
	}
	return first
}
