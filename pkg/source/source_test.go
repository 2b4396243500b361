package source

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	content, err := NewFilesystem().Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("x = 1\n"), content)

	_, err = NewFilesystem().Read(path + ".missing")
	assert.Error(t, err)
}

func TestMemoryRead(t *testing.T) {
	src := NewMemory(map[string][]byte{"a.py": []byte("x = 1\n")})

	content, err := src.Read("a.py")
	require.NoError(t, err)
	assert.Equal(t, []byte("x = 1\n"), content)

	_, err = src.Read("b.py")
	assert.Error(t, err)
}

func TestMemoryCopiesInput(t *testing.T) {
	files := map[string][]byte{"a.py": []byte("x = 1\n")}
	src := NewMemory(files)

	delete(files, "a.py")

	_, err := src.Read("a.py")
	assert.NoError(t, err, "mutating the input map must not affect the source")
}

func TestMemoryPaths(t *testing.T) {
	src := NewMemory(map[string][]byte{
		"b.py": nil,
		"a.py": nil,
	})

	paths := src.Paths()
	sort.Strings(paths)
	assert.Equal(t, []string{"a.py", "b.py"}, paths)
}
