package channel

import (
	"sync"
)

// MemoryChannel is an in-process Channel implementation. Two instances are
// created as a connected pair; a message sent on one side is delivered, in
// order, to the other side's OnData handler by a single pump goroutine.
//
// It exists for tests and for the loopback path, where sender and receiver
// live in the same process.
type MemoryChannel struct {
	mu      sync.Mutex
	peer    *MemoryChannel
	inbox   chan []byte
	done    chan struct{}
	closed  bool
	onData  func([]byte)
	onOpen  func()
	onClose func()
	onError func(error)
}

const memoryInboxDepth = 256

// NewMemoryPair returns two connected MemoryChannels. Both sides are open
// immediately; OnOpen handlers registered later are invoked on registration.
func NewMemoryPair() (*MemoryChannel, *MemoryChannel) {
	a := newMemoryChannel()
	b := newMemoryChannel()
	a.peer = b
	b.peer = a
	go a.pump()
	go b.pump()
	return a, b
}

func newMemoryChannel() *MemoryChannel {
	return &MemoryChannel{
		inbox: make(chan []byte, memoryInboxDepth),
		done:  make(chan struct{}),
	}
}

// pump delivers inbound messages one at a time, preserving order.
func (c *MemoryChannel) pump() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.inbox:
			c.mu.Lock()
			handler := c.onData
			c.mu.Unlock()
			if handler != nil {
				handler(payload)
			}
		}
	}
}

func (c *MemoryChannel) Send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	peer := c.peer
	c.mu.Unlock()

	// Hand the message to the peer's inbox. A copy keeps the sender free
	// to reuse its buffer.
	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case peer.inbox <- buf:
		return nil
	case <-peer.done:
		return ErrClosed
	}
}

func (c *MemoryChannel) OnData(f func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = f
}

func (c *MemoryChannel) OnOpen(f func()) {
	c.mu.Lock()
	closed := c.closed
	c.onOpen = f
	c.mu.Unlock()
	// The pair is born open, so fire straight away.
	if f != nil && !closed {
		f()
	}
}

func (c *MemoryChannel) OnClose(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = f
}

func (c *MemoryChannel) OnError(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = f
}

func (c *MemoryChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close shuts down both sides of the pair.
func (c *MemoryChannel) Close() error {
	c.closeLocal()
	if c.peer != nil {
		c.peer.closeLocal()
	}
	return nil
}

func (c *MemoryChannel) closeLocal() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handler := c.onClose
	close(c.done)
	c.mu.Unlock()

	if handler != nil {
		handler()
	}
}
