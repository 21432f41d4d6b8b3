package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parasail-network/node-agent/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps the credential as a JSON string under a single key.
// Useful when the agent runs somewhere without a writable filesystem.
type RedisStore struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

func NewRedisStore(ctx context.Context, url, key string, log *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("redis connected", zap.String("addr", opts.Addr))
	return &RedisStore{client: client, key: key, log: log}, nil
}

func (s *RedisStore) Load(ctx context.Context) (models.Credential, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		cred := models.Credential{}
		if err := s.Save(ctx, cred); err != nil {
			return cred, err
		}
		s.log.Info("created empty credentials record", zap.String("key", s.key))
		return cred, nil
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("read %s: %w", s.key, err)
	}

	var cred models.Credential
	if err := json.Unmarshal([]byte(val), &cred); err != nil {
		return models.Credential{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.key, err)
	}
	return cred, nil
}

func (s *RedisStore) Save(ctx context.Context, cred models.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.client.Set(ctx, s.key, string(data), 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
