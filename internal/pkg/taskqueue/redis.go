package taskqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "paperchain:task:"
	keyIndex  = "paperchain:tasks:index" // sorted set: score=created_at, member=task_id
	taskTTL   = 7 * 24 * time.Hour
)

// RedisRecorder keeps the latest state of each task in Redis for inspection.
type RedisRecorder struct {
	rdb redis.UniversalClient
}

func NewRedisRecorder(rdb redis.UniversalClient) *RedisRecorder {
	return &RedisRecorder{rdb: rdb}
}

func taskKey(id string) string { return keyPrefix + id }

func (r *RedisRecorder) Record(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), data, taskTTL)
	pipe.ZAdd(ctx, keyIndex, redis.Z{
		Score:  float64(task.CreatedAt.UnixMilli()),
		Member: task.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}
