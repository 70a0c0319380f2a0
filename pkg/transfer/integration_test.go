package transfer

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhp30760/sharestream-local/pkg/channel"
	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
)

// Full protocol round trip over an in-process channel pair: the receiver
// must emit exactly len(files) artifacts, byte-identical to the sources,
// and fire the session completion event once, after all artifacts.
func TestEndToEnd_OverMemoryChannel(t *testing.T) {
	config := &TransferConfig{ChunkSize: 1024, PacingInterval: 0}

	blobs := [][]byte{
		{0x42},                           // single byte
		bytes.Repeat([]byte{0x00}, 5000), // all zeros, forces binary-safe framing
		makePattern(50000),               // spans several chunks
		[]byte("plain text payload"),
	}
	files := make([]fileInfo.SourceFile, len(blobs))
	for i, blob := range blobs {
		files[i] = fileInfo.NewSourceFile("file", blob)
	}

	senderSide, receiverSide := channel.NewMemoryPair()
	defer senderSide.Close()

	var mu sync.Mutex
	var artifacts []AssembledFile
	completionsAfterAllFiles := 0
	done := make(chan struct{})

	session := NewReceiveSession(config,
		func(f AssembledFile) {
			mu.Lock()
			artifacts = append(artifacts, f)
			mu.Unlock()
		},
		func() {
			mu.Lock()
			if len(artifacts) == len(blobs) {
				completionsAfterAllFiles++
			}
			mu.Unlock()
			close(done)
		},
	)
	receiverSide.OnData(func(data []byte) {
		if err := session.HandleMessage(data); err != nil {
			t.Errorf("receive session error: %v", err)
		}
	})

	sender := NewTransferSession(config)
	require.NoError(t, sender.Start(senderSide, files))
	require.NoError(t, sender.SendAll())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for session completion")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, artifacts, len(blobs))
	for i, blob := range blobs {
		assert.Equal(t, blob, normalize(artifacts[i].Data), "file %d must arrive byte-identical", i)
	}
	assert.Equal(t, 1, completionsAfterAllFiles, "Completion fires once, after all artifacts")

	for i := range blobs {
		assert.Equal(t, 100, sender.Progress()[uint32(i)])
		assert.Equal(t, 100, session.Progress()[uint32(i)])
	}
}

func TestEndToEnd_ChannelCloseMidTransferDiscardsPartials(t *testing.T) {
	config := &TransferConfig{ChunkSize: 10, PacingInterval: 0}

	senderSide, receiverSide := channel.NewMemoryPair()

	var mu sync.Mutex
	var artifacts []AssembledFile
	session := NewReceiveSession(config,
		func(f AssembledFile) {
			mu.Lock()
			artifacts = append(artifacts, f)
			mu.Unlock()
		},
		nil,
	)
	receiverSide.OnData(func(data []byte) {
		_ = session.HandleMessage(data)
	})
	receiverSide.OnClose(func() {
		session.Abort()
	})

	// Hand-feed metadata and one of three chunks, then drop the channel.
	serializer := NewJSONSerializer()
	blob := bytes.Repeat([]byte{9}, 25)
	meta, err := serializer.Marshal(metadataFor(blob))
	require.NoError(t, err)
	require.NoError(t, senderSide.Send(meta))

	chunk, err := serializer.Marshal(&Envelope{Type: ChunkMessageType, Chunk: &ChunkMessage{
		FileIndex: 0, ChunkIndex: 0, TotalChunks: 3, Payload: blob[:10],
	}})
	require.NoError(t, err)
	require.NoError(t, senderSide.Send(chunk))

	// Give the pump a moment to deliver before closing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, senderSide.Close())
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, artifacts, "An aborted session must not surface partial files")
}

func makePattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i * 7) % 251)
	}
	return data
}

// normalize maps nil to the empty slice so byte-for-byte comparisons work
// for zero-length files.
func normalize(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
