package fileInfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceFile(t *testing.T) {
	data := []byte("%PDF-1.4 not really a pdf but close enough")
	sf := NewSourceFile("doc.pdf", data)

	assert.Equal(t, "doc.pdf", sf.Descriptor.Name)
	assert.Equal(t, uint64(len(data)), sf.Descriptor.Size)
	assert.NotEmpty(t, sf.Descriptor.MimeType)
	assert.Equal(t, data, sf.Data)
}

func TestLoadSourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	content := []byte("hello from disk")
	require.NoError(t, os.WriteFile(path, content, 0644))

	sf, err := LoadSourceFile(path)
	require.NoError(t, err)

	assert.Equal(t, "hello.txt", sf.Descriptor.Name)
	assert.Equal(t, uint64(len(content)), sf.Descriptor.Size)
	assert.Equal(t, content, sf.Data)
	assert.False(t, sf.Descriptor.LastModified.IsZero())
}

func TestLoadSourceFile_Directory(t *testing.T) {
	_, err := LoadSourceFile(t.TempDir())
	require.Error(t, err)
}

func TestLoadSourceFile_Missing(t *testing.T) {
	_, err := LoadSourceFile(filepath.Join(t.TempDir(), "nope.bin"))
	require.Error(t, err)
}
