package webrtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/rhp30760/sharestream-local/pkg/channel"
)

const (
	// Sends block once more than this many bytes sit in the outbound
	// buffer, so a fast sender cannot overrun the SCTP association.
	bufferedAmountHighWater uint64 = 1 << 20
	bufferedAmountLowWater  uint64 = 256 << 10
)

// DataChannelAdapter presents a pion data channel as a generic Channel.
type DataChannelAdapter struct {
	dc *webrtc.DataChannel

	mu      sync.Mutex
	onData  func([]byte)
	onError func(error)

	opened     chan struct{}
	openedOnce sync.Once
	closed     chan struct{}
	closedOnce sync.Once
	drained    chan struct{}
}

func NewDataChannelAdapter(dc *webrtc.DataChannel) *DataChannelAdapter {
	a := &DataChannelAdapter{
		dc:      dc,
		opened:  make(chan struct{}),
		closed:  make(chan struct{}),
		drained: make(chan struct{}, 1),
	}

	dc.OnOpen(func() {
		a.openedOnce.Do(func() { close(a.opened) })
	})
	dc.OnClose(func() {
		a.closedOnce.Do(func() { close(a.closed) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		a.mu.Lock()
		handler := a.onData
		a.mu.Unlock()
		if handler != nil {
			handler(msg.Data)
		}
	})
	dc.OnError(func(err error) {
		a.mu.Lock()
		handler := a.onError
		a.mu.Unlock()
		if handler != nil {
			handler(err)
		}
	})
	dc.SetBufferedAmountLowThreshold(bufferedAmountLowWater)
	dc.OnBufferedAmountLow(func() {
		select {
		case a.drained <- struct{}{}:
		default:
		}
	})

	return a
}

// WaitOpen blocks until the channel reaches the open state or ctx expires.
func (a *DataChannelAdapter) WaitOpen(ctx context.Context) error {
	select {
	case <-a.opened:
		return nil
	case <-a.closed:
		return channel.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers one whole binary message. It blocks while the outbound
// buffer is above the high-water mark.
func (a *DataChannelAdapter) Send(payload []byte) error {
	if !a.IsOpen() {
		return channel.ErrClosed
	}
	for a.dc.BufferedAmount() > bufferedAmountHighWater {
		select {
		case <-a.drained:
		case <-a.closed:
			return channel.ErrClosed
		}
	}
	return a.dc.Send(payload)
}

func (a *DataChannelAdapter) OnData(f func([]byte)) {
	a.mu.Lock()
	a.onData = f
	a.mu.Unlock()
}

func (a *DataChannelAdapter) OnOpen(f func()) {
	go func() {
		select {
		case <-a.opened:
			f()
		case <-a.closed:
		}
	}()
}

func (a *DataChannelAdapter) OnClose(f func()) {
	go func() {
		<-a.closed
		f()
	}()
}

func (a *DataChannelAdapter) OnError(f func(error)) {
	a.mu.Lock()
	a.onError = f
	a.mu.Unlock()
}

func (a *DataChannelAdapter) IsOpen() bool {
	return a.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (a *DataChannelAdapter) Close() error {
	err := a.dc.Close()
	a.closedOnce.Do(func() { close(a.closed) })
	return err
}
