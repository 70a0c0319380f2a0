package transfer

import (
	"log/slog"
	"sync"

	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
)

// AssembledFile is one fully reconstructed file: its descriptor from the
// metadata envelope plus the reassembled bytes.
type AssembledFile struct {
	Descriptor fileInfo.FileDescriptor
	Data       []byte
}

// ReassemblyBuffer stages one file's chunks until every slot is filled. It
// lives from the first chunk referencing its fileIndex until reassembly,
// at which point it is drained and released so peak memory is bounded by
// the files currently in flight, not by all files ever received.
type ReassemblyBuffer struct {
	Descriptor    fileInfo.FileDescriptor
	chunks        [][]byte
	totalChunks   uint32
	receivedCount uint32
}

// ReceiveSession consumes the inbound envelope stream, buffers chunks per
// file index, detects per-file completion and emits assembled files.
//
// Malformed or out-of-order envelopes are logged and dropped; the session
// keeps running. HandleMessage returns the violation so the driving loop
// can decide whether to tear the channel down.
type ReceiveSession struct {
	mu         sync.RWMutex
	serializer MessageSerializer
	config     *TransferConfig
	buffers    map[uint32]*ReassemblyBuffer
	progress   map[uint32]int // fileIndex -> percent received
	started    bool
	completed  bool
	emitted    int

	onFile     func(AssembledFile)
	onComplete func()
}

// NewReceiveSession creates a receiver session. onFile is invoked once per
// fully assembled file; onComplete once, when the sender's completion
// marker arrives. Both callbacks run on the envelope-delivery goroutine.
func NewReceiveSession(config *TransferConfig, onFile func(AssembledFile), onComplete func()) *ReceiveSession {
	if config == nil {
		config = DefaultTransferConfig()
	}
	return &ReceiveSession{
		serializer: NewJSONSerializer(),
		config:     config,
		buffers:    make(map[uint32]*ReassemblyBuffer),
		progress:   make(map[uint32]int),
		onFile:     onFile,
		onComplete: onComplete,
	}
}

// HandleMessage decodes one wire message and advances the session.
func (r *ReceiveSession) HandleMessage(data []byte) error {
	env, err := r.serializer.Unmarshal(data)
	if err != nil {
		slog.Warn("Dropping undecodable envelope", "error", err)
		return protocolViolation("undecodable envelope: %v", err)
	}
	return r.HandleEnvelope(env)
}

// HandleEnvelope dispatches one envelope by its tag.
func (r *ReceiveSession) HandleEnvelope(env *Envelope) error {
	switch env.Type {
	case MetadataMessage:
		return r.handleMetadata(env)
	case ChunkMessageType:
		return r.handleChunk(env)
	case CompleteMessage:
		return r.handleComplete()
	default:
		slog.Warn("Dropping envelope with unknown type", "type", env.Type)
		return protocolViolation("unknown envelope type %q", env.Type)
	}
}

func (r *ReceiveSession) handleMetadata(env *Envelope) error {
	r.mu.Lock()

	if r.started {
		r.mu.Unlock()
		slog.Warn("Dropping duplicate metadata envelope")
		return protocolViolation("metadata received twice")
	}
	r.started = true

	// fileIndex is the position in the metadata's file list. Zero-size
	// files have no chunks and are complete the moment they are declared.
	var empty []AssembledFile
	for i, desc := range env.Files {
		fileIndex := uint32(i)
		totalChunks := TotalChunks(desc.Size, r.config.ChunkSize)
		if totalChunks == 0 {
			r.progress[fileIndex] = 100
			empty = append(empty, AssembledFile{Descriptor: desc})
			continue
		}
		r.buffers[fileIndex] = &ReassemblyBuffer{
			Descriptor:  desc,
			chunks:      make([][]byte, totalChunks),
			totalChunks: totalChunks,
		}
	}
	r.emitted += len(empty)
	onFile := r.onFile
	r.mu.Unlock()

	slog.Info("Receive session started", "files", len(env.Files))
	if onFile != nil {
		for _, f := range empty {
			onFile(f)
		}
	}
	return nil
}

func (r *ReceiveSession) handleChunk(env *Envelope) error {
	msg := env.Chunk
	if msg == nil {
		slog.Warn("Dropping chunk envelope without chunk body")
		return protocolViolation("chunk envelope missing body")
	}

	r.mu.Lock()

	if !r.started {
		r.mu.Unlock()
		slog.Warn("Dropping chunk received before metadata", "fileIndex", msg.FileIndex)
		return protocolViolation("chunk before metadata")
	}

	buffer, ok := r.buffers[msg.FileIndex]
	if !ok {
		r.mu.Unlock()
		slog.Warn("Dropping chunk for undeclared file", "fileIndex", msg.FileIndex)
		return protocolViolation("chunk for undeclared fileIndex %d", msg.FileIndex)
	}
	if msg.ChunkIndex >= buffer.totalChunks {
		r.mu.Unlock()
		slog.Warn("Dropping chunk with out-of-range index",
			"fileIndex", msg.FileIndex, "chunkIndex", msg.ChunkIndex, "totalChunks", buffer.totalChunks)
		return protocolViolation("chunkIndex %d out of range [0, %d)", msg.ChunkIndex, buffer.totalChunks)
	}

	// The channel guarantees no duplication, so a filled slot is simply
	// overwritten rather than defended against.
	if buffer.chunks[msg.ChunkIndex] == nil {
		buffer.receivedCount++
	}
	buffer.chunks[msg.ChunkIndex] = msg.Payload
	r.progress[msg.FileIndex] = percent(buffer.receivedCount, buffer.totalChunks)

	if buffer.receivedCount < buffer.totalChunks {
		r.mu.Unlock()
		return nil
	}

	// All slots filled: assemble immediately and release the buffer.
	assembled, err := Reassemble(buffer.chunks, buffer.totalChunks)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	delete(r.buffers, msg.FileIndex)
	r.emitted++
	onFile := r.onFile
	r.mu.Unlock()

	slog.Info("File reassembled", "name", buffer.Descriptor.Name, "size", len(assembled))
	if onFile != nil {
		onFile(AssembledFile{Descriptor: buffer.Descriptor, Data: assembled})
	}
	return nil
}

func (r *ReceiveSession) handleComplete() error {
	r.mu.Lock()

	if !r.started {
		r.mu.Unlock()
		slog.Warn("Dropping completion marker received before metadata")
		return protocolViolation("complete before metadata")
	}
	if r.completed {
		r.mu.Unlock()
		slog.Warn("Dropping duplicate completion marker")
		return protocolViolation("complete received twice")
	}
	r.completed = true
	undrained := len(r.buffers)
	onComplete := r.onComplete
	r.mu.Unlock()

	slog.Info("Receive session completed", "files", r.Emitted())
	if onComplete != nil {
		onComplete()
	}

	// A reliable ordered channel cannot leave buffers open at this point;
	// if one is, the transport broke its contract.
	if undrained > 0 {
		slog.Error("Completion marker arrived with unfinished files", "open_buffers", undrained)
		return protocolViolation("%d file(s) incomplete at session completion", undrained)
	}
	return nil
}

// Abort discards every open reassembly buffer without emitting anything.
// Called when the channel closes mid-transfer: partial files are dropped,
// never surfaced.
func (r *ReceiveSession) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buffers) > 0 {
		slog.Warn("Aborting receive session", "discarded_files", len(r.buffers))
	}
	r.buffers = make(map[uint32]*ReassemblyBuffer)
}

// Progress returns a snapshot of per-file percent received, keyed by
// fileIndex.
func (r *ReceiveSession) Progress() map[uint32]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[uint32]int, len(r.progress))
	for k, v := range r.progress {
		snapshot[k] = v
	}
	return snapshot
}

// Completed reports whether the sender's completion marker has arrived.
func (r *ReceiveSession) Completed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed
}

// Emitted returns how many assembled files have been handed to the onFile
// callback so far.
func (r *ReceiveSession) Emitted() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emitted
}
