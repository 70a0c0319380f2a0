package transfer

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rhp30760/sharestream-local/pkg/channel"
	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
)

// SessionState tracks where a sender session is in its lifecycle.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionMetadataSent
	SessionTransferring
	SessionCompleted
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionMetadataSent:
		return "metadata_sent"
	case SessionTransferring:
		return "transferring"
	case SessionCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// TransferSession drives one file-set transfer to one connected peer:
// metadata first, then the chunk stream in file and chunk order, then the
// completion marker. Chunk emission is sequential; receiver-side ordering
// stays trivial and no reordering buffer is needed on either end.
type TransferSession struct {
	mu         sync.RWMutex
	serializer MessageSerializer
	config     *TransferConfig
	state      SessionState
	files      []fileInfo.SourceFile
	ch         channel.Channel
	progress   map[uint32]int // fileIndex -> percent sent
}

func NewTransferSession(config *TransferConfig) *TransferSession {
	if config == nil {
		config = DefaultTransferConfig()
	}
	return &TransferSession{
		serializer: NewJSONSerializer(),
		config:     config,
		state:      SessionIdle,
		progress:   make(map[uint32]int),
	}
}

// Start sends the metadata envelope for the given file set. The input order
// fixes each file's fileIndex for the remainder of the session.
func (s *TransferSession) Start(ch channel.Channel, files []fileInfo.SourceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionIdle {
		return fmt.Errorf("%w: cannot start in state %s", ErrInvalidSessionState, s.state)
	}
	if ch == nil || !ch.IsOpen() {
		return ErrNoActiveChannel
	}
	if len(files) == 0 {
		return ErrNoFilesSelected
	}

	descriptors := make([]fileInfo.FileDescriptor, len(files))
	for i, f := range files {
		descriptors[i] = f.Descriptor
	}

	if err := s.sendLocked(ch, &Envelope{Type: MetadataMessage, Files: descriptors}); err != nil {
		return err
	}

	s.ch = ch
	s.files = files
	s.state = SessionMetadataSent
	slog.Info("Transfer session started", "files", len(files))
	return nil
}

// SendAll streams every chunk of every file in order, then the completion
// marker. A fixed pacing pause between chunks keeps the channel's outbound
// buffer from saturating. Channel failures surface as *ChannelError and
// leave the session where it was; the protocol offers no resume.
func (s *TransferSession) SendAll() error {
	s.mu.Lock()
	if s.state != SessionMetadataSent {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot send in state %s", ErrInvalidSessionState, s.state)
	}
	s.state = SessionTransferring
	ch := s.ch
	files := s.files
	s.mu.Unlock()

	for fileIndex, file := range files {
		lastFile := fileIndex == len(files)-1
		if err := s.sendFile(ch, uint32(fileIndex), file, lastFile); err != nil {
			return err
		}
	}

	if err := s.send(ch, &Envelope{Type: CompleteMessage}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = SessionCompleted
	s.mu.Unlock()
	slog.Info("Transfer session completed", "files", len(files))
	return nil
}

func (s *TransferSession) sendFile(ch channel.Channel, fileIndex uint32, file fileInfo.SourceFile, lastFile bool) error {
	totalChunks := TotalChunks(file.Descriptor.Size, s.config.ChunkSize)
	if totalChunks == 0 {
		// Empty file: nothing on the wire beyond its metadata entry.
		s.setProgress(fileIndex, 100)
		return nil
	}

	chunker, err := NewChunker(file.Data, s.config.ChunkSize)
	if err != nil {
		return err
	}

	for {
		chunk, err := chunker.Next()
		if err != nil {
			break // io.EOF
		}

		env := &Envelope{
			Type: ChunkMessageType,
			Chunk: &ChunkMessage{
				FileIndex:   fileIndex,
				ChunkIndex:  chunk.Index,
				TotalChunks: totalChunks,
				Payload:     chunk.Payload,
			},
		}
		if err := s.send(ch, env); err != nil {
			return err
		}

		s.setProgress(fileIndex, percent(chunk.Index+1, totalChunks))

		if !chunk.IsLast || !lastFile {
			time.Sleep(s.config.PacingInterval)
		}
	}
	return nil
}

func (s *TransferSession) send(ch channel.Channel, env *Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(ch, env)
}

func (s *TransferSession) sendLocked(ch channel.Channel, env *Envelope) error {
	data, err := s.serializer.Marshal(env)
	if err != nil {
		return err
	}
	if err := ch.Send(data); err != nil {
		return &ChannelError{Err: err}
	}
	return nil
}

func (s *TransferSession) setProgress(fileIndex uint32, pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pct > s.progress[fileIndex] {
		s.progress[fileIndex] = pct
	}
}

// Progress returns a snapshot of per-file percent sent, keyed by fileIndex.
func (s *TransferSession) Progress() map[uint32]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[uint32]int, len(s.progress))
	for k, v := range s.progress {
		snapshot[k] = v
	}
	return snapshot
}

func (s *TransferSession) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func percent(done, total uint32) int {
	return int(math.Round(100 * float64(done) / float64(total)))
}
