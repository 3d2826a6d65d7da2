package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFileStorageJSON(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	var missing []string
	assert.ErrorIs(t, fs.LoadJSONFile("models.json", &missing), ErrNotFound)
	assert.False(t, fs.FileExists("models.json"))

	require.NoError(t, fs.SaveJSONFile("models.json", []string{"a", "b"}))
	assert.True(t, fs.FileExists("models.json"))

	var loaded []string
	require.NoError(t, fs.LoadJSONFile("models.json", &loaded))
	assert.Equal(t, []string{"a", "b"}, loaded)

	require.NoError(t, fs.DeleteFile("models.json"))
	require.NoError(t, fs.DeleteFile("models.json"))
	assert.False(t, fs.FileExists("models.json"))
}

func TestUpdateJSONFileSerializesWriters(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var counter int
			assert.NoError(t, fs.UpdateJSONFile("counter.json", &counter, func() error {
				counter++
				return nil
			}))
		}()
	}
	wg.Wait()

	var counter int
	require.NoError(t, fs.LoadJSONFile("counter.json", &counter))
	assert.Equal(t, 20, counter)
}

func TestUpdateJSONFileAbortsOnError(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	var v map[string]string
	err = fs.UpdateJSONFile("x.json", &v, func() error { return errors.New("stop") })
	assert.EqualError(t, err, "stop")
	assert.False(t, fs.FileExists("x.json"))
}

func testKeyValueStore(t *testing.T, store KeyValueStore) {
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "apikey_openai")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "apikey_openai", "v1"))
	require.NoError(t, store.Set(ctx, "gemini_api_key", "v2"))

	v, ok, err := store.Get(ctx, "apikey_openai")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"apikey_openai", "gemini_api_key"}, keys)

	require.NoError(t, store.Delete(ctx, "apikey_openai"))
	_, ok, err = store.Get(ctx, "apikey_openai")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileKeyValueStore(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	testKeyValueStore(t, NewFileKeyValueStore(fs, "credentials.json"))
}

func TestRedisKeyValueStore(t *testing.T) {
	testKeyValueStore(t, NewRedisKeyValueStore(setupTestRedis(t), "scriptstudio:credentials"))
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
