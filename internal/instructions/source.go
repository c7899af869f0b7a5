package instructions

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// Source loads the full supplementary instruction text.
type Source interface {
	Name() string
	Load(ctx context.Context) (string, error)
}

// FileSource reads instructions from a local text file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file" }

func (s FileSource) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read instructions file %s: %w", s.Path, err)
	}
	return string(data), nil
}

// RedisSource reads instructions from a single Redis string key, so every
// gateway replica serves the same text.
type RedisSource struct {
	Client redis.Cmdable
	Key    string
}

func (s RedisSource) Name() string { return "redis" }

func (s RedisSource) Load(ctx context.Context) (string, error) {
	val, err := s.Client.Get(ctx, s.Key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("instructions key %q not set", s.Key)
	}
	if err != nil {
		return "", fmt.Errorf("get instructions key %q: %w", s.Key, err)
	}
	return val, nil
}
