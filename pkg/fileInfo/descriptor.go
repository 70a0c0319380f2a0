package fileInfo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// FileDescriptor describes one file in a transfer. It is produced once when
// the transfer starts and is immutable afterwards.
type FileDescriptor struct {
	Name         string    `json:"name"`
	Size         uint64    `json:"size"`
	MimeType     string    `json:"mime_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// SourceFile pairs a descriptor with the raw bytes handed over by the host
// application (file picker, drag and drop, CLI argument).
type SourceFile struct {
	Descriptor FileDescriptor
	Data       []byte
}

// NewSourceFile builds a SourceFile from an in-memory blob, detecting the
// MIME type from the content.
func NewSourceFile(name string, data []byte) SourceFile {
	mime := mimetype.Detect(data)
	return SourceFile{
		Descriptor: FileDescriptor{
			Name:         name,
			Size:         uint64(len(data)),
			MimeType:     mime.String(),
			LastModified: time.Now(),
		},
		Data: data,
	}
}

// LoadSourceFile reads a file from disk and builds its SourceFile.
func LoadSourceFile(path string) (SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceFile{}, err
	}
	if info.IsDir() {
		return SourceFile{}, fmt.Errorf("%s is a directory, only regular files can be sent", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SourceFile{}, err
	}

	mime := mimetype.Detect(data)
	return SourceFile{
		Descriptor: FileDescriptor{
			Name:         filepath.Base(path),
			Size:         uint64(len(data)),
			MimeType:     mime.String(),
			LastModified: info.ModTime(),
		},
		Data: data,
	}, nil
}
