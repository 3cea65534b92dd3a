package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

type snapshot struct {
	Items []Line `json:"items"`
}

// FileStore keeps the cart in a JSON file on the local device.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) ([]Line, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	return snap.Items, nil
}

// Save writes a temp file next to the target and renames it into place.
func (s *FileStore) Save(ctx context.Context, lines []Line) error {
	data, err := json.Marshal(snapshot{Items: lines})
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cart: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// RedisStore keeps one cart per id under "cart:<id>".
type RedisStore struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

// NewRedisStore returns a store for cartID. A zero ttl never expires.
func NewRedisStore(rdb redis.UniversalClient, cartID string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, key: "cart:" + cartID, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) ([]Line, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.key, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.key, err)
	}
	return snap.Items, nil
}

func (s *RedisStore) Save(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("failed to delete %s: %w", s.key, err)
		}
		return nil
	}
	data, err := json.Marshal(snapshot{Items: lines})
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", s.key, err)
	}
	return nil
}
