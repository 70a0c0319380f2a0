package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveChannel is returned when a session is started without an
	// open channel to send on.
	ErrNoActiveChannel = errors.New("no active channel")

	// ErrNoFilesSelected is returned when a session is started with an
	// empty file set.
	ErrNoFilesSelected = errors.New("no files selected")

	// ErrProtocolViolation marks a malformed or out-of-order envelope. The
	// offending envelope is dropped; the session keeps running.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrIncompleteTransfer is returned when reassembly is attempted with
	// missing chunks. Under a reliable ordered channel this is unreachable;
	// it exists so a broken transport fails loudly instead of emitting
	// truncated bytes.
	ErrIncompleteTransfer = errors.New("incomplete transfer")

	// ErrInvalidSessionState is returned when a session operation is called
	// out of order, e.g. SendAll before Start.
	ErrInvalidSessionState = errors.New("invalid session state")
)

// ChannelError wraps a transport failure surfaced by a channel write. The
// protocol does not retry; the caller decides what to do with the session.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel error: %v", e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

func protocolViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
