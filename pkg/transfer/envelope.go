package transfer

import "github.com/rhp30760/sharestream-local/pkg/fileInfo"

type MessageType string

const (
	// MetadataMessage announces the file set; sent exactly once, first.
	MetadataMessage MessageType = "metadata"
	// ChunkMessageType carries one slice of one file's bytes.
	ChunkMessageType MessageType = "chunk"
	// CompleteMessage marks the end of the whole transfer; sent exactly
	// once, after the last chunk of the last file.
	CompleteMessage MessageType = "complete"
)

// ChunkMessage addresses one payload slice within the session's file set.
// For a given FileIndex, ChunkIndex ranges densely over [0, TotalChunks).
type ChunkMessage struct {
	FileIndex   uint32 `json:"file_index"`
	ChunkIndex  uint32 `json:"chunk_index"`
	TotalChunks uint32 `json:"total_chunks"`
	Payload     []byte `json:"payload"`
}

// Envelope is the tagged union of every message the protocol puts on the
// wire. Dispatch on Type; exactly one of Files / Chunk is populated for
// the metadata and chunk variants, Complete carries neither.
type Envelope struct {
	Type  MessageType               `json:"type"`
	Files []fileInfo.FileDescriptor `json:"files,omitempty"`
	Chunk *ChunkMessage             `json:"chunk,omitempty"`
}

// MessageSerializer converts envelopes to and from wire bytes. The encoding
// must round-trip binary chunk payloads without loss.
type MessageSerializer interface {
	Marshal(env *Envelope) ([]byte, error)
	Unmarshal(data []byte) (*Envelope, error)
	Name() string
}
