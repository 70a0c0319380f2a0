package channel

import "errors"

// ErrClosed is returned by Send when the channel is no longer open.
var ErrClosed = errors.New("channel is closed")

// Channel is a reliable, ordered, bidirectional message transport between
// two peers. Implementations must deliver whole messages exactly once, in
// the order they were sent, and must never corrupt binary payloads.
//
// Callback registration is not synchronized with delivery: register OnData
// before the remote side starts sending.
type Channel interface {
	// Send transmits one whole message to the remote peer.
	Send(payload []byte) error

	// OnData registers the handler invoked once per inbound message.
	OnData(func(payload []byte))

	// OnOpen registers the handler invoked when the channel becomes usable.
	OnOpen(func())

	// OnClose registers the handler invoked when the channel shuts down,
	// locally or remotely.
	OnClose(func())

	// OnError registers the handler for transport-level failures.
	OnError(func(err error))

	// IsOpen reports whether Send can currently succeed.
	IsOpen() bool

	// Close tears the channel down. Safe to call more than once.
	Close() error
}
