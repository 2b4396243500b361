// Package source abstracts where file content comes from. Analyzers read
// through a ContentSource so callers can hand them pre-loaded buffers
// instead of filesystem paths.
package source

import (
	"fmt"
	"os"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MemorySource serves pre-loaded content from an in-memory map.
// It is safe for concurrent reads once constructed.
type MemorySource struct {
	files map[string][]byte
}

// NewMemory creates a source backed by the given path -> content map.
func NewMemory(files map[string][]byte) *MemorySource {
	copied := make(map[string][]byte, len(files))
	for path, content := range files {
		copied[path] = content
	}
	return &MemorySource{files: copied}
}

// Read implements ContentSource.
func (m *MemorySource) Read(path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no content for %s", path)
	}
	return content, nil
}

// Paths returns all paths known to the source in unspecified order.
func (m *MemorySource) Paths() []string {
	paths := make([]string, 0, len(m.files))
	for path := range m.files {
		paths = append(paths, path)
	}
	return paths
}
