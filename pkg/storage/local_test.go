package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	key := MediaKey("clip.MP4")
	require.NoError(t, l.Put(ctx, key, "video/mp4", strings.NewReader("frames"), 6))

	obj, err := l.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, obj.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, "frames", string(data))
	assert.Equal(t, int64(6), obj.Size)
	_, seekable := obj.Body.(io.ReadSeeker)
	assert.True(t, seekable)

	require.NoError(t, l.Delete(ctx, key))
	_, err = l.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, l.Delete(ctx, key), ErrNotFound)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	l, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	for _, key := range []string{"../outside", "/etc/passwd", ".."} {
		_, err := l.Open(context.Background(), key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, ErrNotFound, key)
	}
}

func TestLocalHealth(t *testing.T) {
	l, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)
	assert.NoError(t, l.Health(context.Background()))
}

func TestMediaKey(t *testing.T) {
	key := MediaKey("My Movie.MKV")
	assert.True(t, strings.HasPrefix(key, FolderMedia+"/"))
	assert.True(t, strings.HasSuffix(key, ".mkv"))
	assert.NotEqual(t, key, MediaKey("My Movie.MKV"))

	assert.False(t, strings.Contains(MediaKey(`..\..\evil.mp4`), ".."))
	assert.NotContains(t, MediaKey("noext"), ".")
}
