package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harishm17/study-buddy-sub001/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key := MaterialObjectKey("p1", "m1", "Week 1 notes.pdf")
	assert.Equal(t, "projects/p1/materials/m1/Week_1_notes.pdf", key)

	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello"), "application/pdf"))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting twice is not an error")

	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.URL(ctx, key, 0)
	assert.ErrorIs(t, err, ErrURLUnsupported)
	assert.NoError(t, store.Ping(ctx))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../etc/passwd", "a/../../b", "/abs", "", "a//b", `a\b`} {
		err := store.Put(context.Background(), key, strings.NewReader("x"), "")
		assert.Truef(t, errors.Is(err, ErrInvalidKey), "key %q: got %v", key, err)
	}
}

func TestReadAllLimit(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "a/b.txt", strings.NewReader("0123456789"), "text/plain"))

	data, err := ReadAll(ctx, store, "a/b.txt", 10)
	require.NoError(t, err)
	assert.Len(t, data, 10)

	_, err = ReadAll(ctx, store, "a/b.txt", 5)
	assert.Error(t, err)
}

func TestParseGCSPath(t *testing.T) {
	bucket, object, err := ParseGCSPath("gs://study/projects/p/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "study", bucket)
	assert.Equal(t, "projects/p/x.pdf", object)

	for _, bad := range []string{"s3://a/b", "gs://bucket", "gs:///obj", "gs://bucket/"} {
		_, _, err := ParseGCSPath(bad)
		assert.Errorf(t, err, "expected error for %q", bad)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Backend: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Name())

	_, err = New(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}
