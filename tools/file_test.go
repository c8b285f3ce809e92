package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileTools(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := FileOptions{BaseDir: dir}
	read := NewReadFile(opts)
	write := NewWriteFile(opts)

	out, err := write.Invoke(ctx, map[string]any{"file_path": "notes/today.md", "content": "hello"})
	require.NoError(t, err)
	require.Equal(t, "Wrote 5 characters to notes/today.md", out)
	require.FileExists(t, filepath.Join(dir, "notes", "today.md"))

	_, err = write.Invoke(ctx, map[string]any{"file_path": "notes/today.md", "content": " world", "mode": "a"})
	require.NoError(t, err)

	out, err = read.Invoke(ctx, map[string]any{"file_path": "notes/today.md"})
	require.NoError(t, err)
	require.Equal(t, "Contents of notes/today.md:\nhello world", out)

	_, err = write.Invoke(ctx, map[string]any{"file_path": "notes/today.md", "content": "reset"})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "notes", "today.md"))
	require.NoError(t, err)
	require.Equal(t, "reset", string(data))
}

func TestFileToolErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := FileOptions{BaseDir: dir}

	_, err := NewReadFile(opts).Invoke(ctx, map[string]any{"file_path": "script.sh"})
	require.ErrorContains(t, err, "not allowed")

	_, err = NewReadFile(opts).Invoke(ctx, map[string]any{"file_path": "missing.txt"})
	require.ErrorContains(t, err, "not found")

	_, err = NewReadFile(opts).Invoke(ctx, map[string]any{"file_path": "a.txt", "encoding": "latin-1"})
	require.ErrorContains(t, err, "unsupported encoding")

	_, err = NewWriteFile(opts).Invoke(ctx, map[string]any{"file_path": "a.txt", "content": "x", "mode": "x"})
	require.ErrorContains(t, err, "unsupported mode")
}

func TestReadFileTruncates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte(strings.Repeat("a", 30)), 0644))

	read := NewReadFile(FileOptions{BaseDir: dir, MaxReadChars: 10})
	out, err := read.Invoke(context.Background(), map[string]any{"file_path": "big.txt"})
	require.NoError(t, err)
	require.Equal(t, "Contents of big.txt:\naaaaaaaaaa\n... (20 more characters omitted)", out)
}
