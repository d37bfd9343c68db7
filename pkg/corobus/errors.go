// Copyright © 2024 Timothy E. Peoples

package corobus

// errstr implements error via a bare string, matching the sentinel-error
// pattern from "github.com/go-sage/corobus/pkg/pipeline".errors.go.
type errstr string

func (e errstr) Error() string { return string(e) }

const (
	// ErrNoChannel is the structural error: the given id is out of range,
	// its slot is vacant, or (in principle) a new channel could not be
	// allocated. It corresponds to CORO_BUS_ERR_NO_CHANNEL in the original
	// C API and is fatal for the call that produced it.
	ErrNoChannel = errstr("corobus: no such channel")

	// ErrWouldBlock is the transient error: a non-blocking operation could
	// not make progress right now. It corresponds to
	// CORO_BUS_ERR_WOULD_BLOCK and is only ever returned by a Try*
	// function -- every blocking counterpart absorbs it into a park.
	ErrWouldBlock = errstr("corobus: would block")
)

// Code is the three-value error taxonomy from spec.md §7, offered for
// callers that would rather switch on a code than compare error values.
type Code int

const (
	// None means success.
	None Code = iota
	// NoChannel corresponds to ErrNoChannel.
	NoChannel
	// WouldBlock corresponds to ErrWouldBlock.
	WouldBlock
)

// CodeOf maps an error returned by this package to its Code. nil, and any
// error not defined by this package, maps to None.
func CodeOf(err error) Code {
	switch err {
	case ErrNoChannel:
		return NoChannel
	case ErrWouldBlock:
		return WouldBlock
	default:
		return None
	}
}

// errno is a process-wide compatibility shim for the original API's global
// last-error slot (spec.md §9). It is sound only under the same assumption
// the rest of this package relies on: a single-threaded cooperative
// scheduler where no operation yields between setting it and returning.
// Exercising corobus from multiple OS threads concurrently (rather than
// through coro.Runtime's single-admission gate) makes Errno/SetErrno
// racy; prefer the error value every function returns directly.
var errno error

// Errno returns the error set by the most recently returned operation on
// this package, or nil.
func Errno() error { return errno }

// SetErrno overwrites the process-wide last-error slot. Open, Close and
// every Try* operation already store their own result in that slot (the
// blocking operations do so through the Try* calls they make); SetErrno is
// exported only for parity with spec.md §6's errno_set entry.
func SetErrno(err error) { errno = err }
