package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPair_DeliversInOrder(t *testing.T) {
	a, b := NewMemoryPair()
	defer a.Close()

	var mu sync.Mutex
	var got [][]byte
	done := make(chan struct{})

	b.OnData(func(payload []byte) {
		mu.Lock()
		got = append(got, payload)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	require.NoError(t, a.Send([]byte("one")))
	require.NoError(t, a.Send([]byte("two")))
	require.NoError(t, a.Send([]byte("three")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, got)
}

func TestMemoryPair_SendCopiesPayload(t *testing.T) {
	a, b := NewMemoryPair()
	defer a.Close()

	received := make(chan []byte, 1)
	b.OnData(func(payload []byte) { received <- payload })

	buf := []byte{0x00, 0x01, 0xFF}
	require.NoError(t, a.Send(buf))
	buf[0] = 0xAA // mutate after send

	select {
	case got := <-received:
		assert.Equal(t, []byte{0x00, 0x01, 0xFF}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemoryPair_CloseStopsBothSides(t *testing.T) {
	a, b := NewMemoryPair()

	closed := make(chan struct{})
	b.OnClose(func() { close(closed) })

	require.NoError(t, a.Close())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("peer OnClose never fired")
	}

	assert.False(t, a.IsOpen())
	assert.False(t, b.IsOpen())
	assert.ErrorIs(t, a.Send([]byte("late")), ErrClosed)
	assert.ErrorIs(t, b.Send([]byte("late")), ErrClosed)
}

func TestMemoryPair_OnOpenFiresOnRegistration(t *testing.T) {
	a, _ := NewMemoryPair()
	defer a.Close()

	opened := false
	a.OnOpen(func() { opened = true })
	assert.True(t, opened)
}
