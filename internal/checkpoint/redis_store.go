package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps checkpoint documents under "<prefix><path>" keys.
type RedisStore struct {
	client       redis.Cmdable
	prefix       string
	architecture string
	logger       hclog.Logger
}

func NewRedisStore(client redis.Cmdable, prefix string, architecture string, logger hclog.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, architecture: architecture, logger: logger}
}

func (rs *RedisStore) key(path string) string {
	return rs.prefix + path
}

func (rs *RedisStore) Save(ctx context.Context, params *model.ParameterStore, path string) error {
	data, err := encode(params, rs.architecture)
	if err != nil {
		return err
	}

	if err := rs.client.Set(ctx, rs.key(path), data, 0).Err(); err != nil {
		rs.logger.Error("Error saving model", "key", rs.key(path), "error", err)
		return fmt.Errorf("failed to set Redis key: %w", err)
	}

	rs.logger.Info(fmt.Sprintf("Model saved successfully to redis key %s", rs.key(path)))
	return nil
}

func (rs *RedisStore) Load(ctx context.Context, path string, expected model.Schema) (*model.ParameterStore, error) {
	data, err := rs.client.Get(ctx, rs.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis key %s", common.ErrCheckpointNotFound, rs.key(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis key: %w", err)
	}

	return decode(data, rs.architecture, expected)
}
