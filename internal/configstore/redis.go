package configstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/jpl-safedocs/file-observatory/internal/engine"
)

// RedisConfig holds connection parameters for a Redis-backed store.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Key      string
}

// RedisStore persists the configuration document under a single key in
// Redis, for deployments where analysts share one configuration.
type RedisStore struct {
	client rueidis.Client
	key    string
}

// NewRedisStore creates a Redis-backed store via rueidis.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Key == "" {
		cfg.Key = "observatory:config"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &RedisStore{client: client, key: cfg.Key}, nil
}

func (r *RedisStore) Load(ctx context.Context) (engine.FullConfig, error) {
	var cfg engine.FullConfig
	cmd := r.client.B().Get().Key(r.key).Build()
	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return cfg, ErrNotFound
		}
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (r *RedisStore) Save(ctx context.Context, cfg engine.FullConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	cmd := r.client.B().Set().Key(r.key).Value(string(data)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (r *RedisStore) Close() {
	r.client.Close()
}
