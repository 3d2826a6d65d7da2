// internal/storage/kv.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// KeyValueStore 凭据等小体量键值数据的持久化后端
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// FileKeyValueStore 整个 map 保存在一个 JSON 文件中
type FileKeyValueStore struct {
	fs       *FileStorage
	filename string
}

// NewFileKeyValueStore 创建文件键值存储
func NewFileKeyValueStore(fs *FileStorage, filename string) *FileKeyValueStore {
	return &FileKeyValueStore{fs: fs, filename: filename}
}

func (s *FileKeyValueStore) load() (map[string]string, error) {
	values := map[string]string{}
	if err := s.fs.LoadJSONFile(s.filename, &values); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return values, nil
}

func (s *FileKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileKeyValueStore) Set(ctx context.Context, key, value string) error {
	values := map[string]string{}
	return s.fs.UpdateJSONFile(s.filename, &values, func() error {
		values[key] = value
		return nil
	})
}

func (s *FileKeyValueStore) Delete(ctx context.Context, key string) error {
	values := map[string]string{}
	return s.fs.UpdateJSONFile(s.filename, &values, func() error {
		delete(values, key)
		return nil
	})
}

func (s *FileKeyValueStore) Keys(ctx context.Context) ([]string, error) {
	values, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// RedisKeyValueStore 存放在一个 Redis hash 中，多个实例共享
type RedisKeyValueStore struct {
	client *redis.Client
	hash   string
}

// NewRedisClient 创建 Redis 客户端并检查连通性
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisKeyValueStore 创建 Redis 键值存储
func NewRedisKeyValueStore(client *redis.Client, hash string) *RedisKeyValueStore {
	return &RedisKeyValueStore{client: client, hash: hash}
}

func (s *RedisKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return v, true, nil
}

func (s *RedisKeyValueStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisKeyValueStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (s *RedisKeyValueStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
