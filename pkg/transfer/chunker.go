package transfer

import (
	"errors"
	"fmt"
	"io"
)

// Chunk is one bounded slice of a file's bytes plus its position.
type Chunk struct {
	Index   uint32
	Payload []byte
	IsLast  bool
}

// Chunker splits a blob into fixed-size chunks, lazily, in index order.
// Splitting the same bytes with the same chunk size always yields the same
// sequence.
type Chunker struct {
	data       []byte
	chunkSize  int
	currentIdx uint32
	offset     int
}

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

func NewChunker(data []byte, chunkSize int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	return &Chunker{
		data:      data,
		chunkSize: chunkSize,
	}, nil
}

// TotalChunks returns ceil(size / chunkSize).
func TotalChunks(size uint64, chunkSize int) uint32 {
	if size == 0 {
		return 0
	}
	return uint32((size + uint64(chunkSize) - 1) / uint64(chunkSize))
}

// Next returns the next chunk in index order, or io.EOF after the last one.
func (c *Chunker) Next() (*Chunk, error) {
	if c.offset >= len(c.data) {
		return nil, io.EOF
	}

	end := c.offset + c.chunkSize
	if end > len(c.data) {
		end = len(c.data)
	}

	// Copy so the caller owns the payload independently of the source blob.
	payload := make([]byte, end-c.offset)
	copy(payload, c.data[c.offset:end])

	chunk := &Chunk{
		Index:   c.currentIdx,
		Payload: payload,
		IsLast:  end >= len(c.data),
	}

	c.offset = end
	c.currentIdx++
	return chunk, nil
}

// Reassemble concatenates slots in index order. Every slot in
// [0, expectedTotal) must be present; a gap fails with ErrIncompleteTransfer
// rather than silently emitting truncated bytes.
func Reassemble(slots [][]byte, expectedTotal uint32) ([]byte, error) {
	if uint32(len(slots)) != expectedTotal {
		return nil, fmt.Errorf("%w: have %d slots, expected %d", ErrIncompleteTransfer, len(slots), expectedTotal)
	}

	total := 0
	for i, slot := range slots {
		if slot == nil {
			return nil, fmt.Errorf("%w: missing chunk %d of %d", ErrIncompleteTransfer, i, expectedTotal)
		}
		total += len(slot)
	}

	assembled := make([]byte, 0, total)
	for _, slot := range slots {
		assembled = append(assembled, slot...)
	}
	return assembled, nil
}
