package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "answer/1.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://answer/1.json", uri)

	payload[0] = 'C'
	stored, ok := store.Get("answer/1.json")
	require.True(t, ok)
	require.Equal(t, "content", string(stored))
}

func TestBlobStoreOverwrite(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	_, err := store.PutObject(ctx, "b", "", bytes.NewBufferString("one"))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "a", "", bytes.NewBufferString("x"))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "b", "", bytes.NewBufferString("two"))
	require.NoError(t, err)

	got, ok := store.Get("b")
	require.True(t, ok)
	require.Equal(t, "two", string(got))
	require.Equal(t, []string{"a", "b"}, store.Paths())

	_, ok = store.Get("missing")
	require.False(t, ok)
}
