package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_SaveThenOpenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)
	ctx := context.Background()

	err := s.Save(ctx, "call-1/recording.wav", []byte("audio bytes"), "audio/wav")
	require.NoError(t, err)

	assert.True(t, s.Exists(ctx, "call-1/recording.wav"))

	rc, err := s.Open(ctx, "call-1/recording.wav")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "audio bytes", string(got))
}

func TestLocalStore_SaveCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	err := s.Save(context.Background(), "call-1/sub/recording.wav", []byte("x"), "audio/wav")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "call-1", "sub", "recording.wav"))
	assert.NoError(t, err)
}

func TestLocalStore_SaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	require.NoError(t, s.Save(context.Background(), "call-1/recording.wav", []byte("x"), "audio/wav"))

	entries, err := os.ReadDir(filepath.Join(dir, "call-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recording.wav", entries[0].Name())
}

func TestLocalStore_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)
	ctx := context.Background()

	err := s.Save(ctx, "../../etc/passwd", []byte("pwned"), "text/plain")
	assert.Error(t, err)

	_, err = s.Open(ctx, "../../etc/passwd")
	assert.Error(t, err)

	assert.False(t, s.Exists(ctx, "../../etc/passwd"))
}

func TestLocalStore_ExistsFalseForMissingKey(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	assert.False(t, s.Exists(context.Background(), "nope/missing.wav"))
}

func TestLocalStore_Type(t *testing.T) {
	assert.Equal(t, "local", NewLocalStore(t.TempDir()).Type())
}

func TestLocalStore_URLIsEmptyForLocalBackend(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	url, err := s.URL(context.Background(), "call-1/recording.wav")
	require.NoError(t, err)
	assert.Empty(t, url)
}
