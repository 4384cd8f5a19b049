package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobKind selects what the worker does with a source.
type JobKind string

const (
	// JobCheck probes every channel of the source.
	JobCheck JobKind = "check"
	// JobRefresh re-fetches the playlist, then probes it.
	JobRefresh JobKind = "refresh"
)

// CheckJob is one queued unit of background work.
type CheckJob struct {
	Kind       JobKind   `json:"kind"`
	SourceID   int64     `json:"source_id"`
	SourceName string    `json:"source_name,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DefaultQueue is the Redis list used for check jobs.
var DefaultQueue = Key("jobs", "checks")

// Enqueue pushes job onto the left of the list.
func Enqueue(ctx context.Context, r *Redis, queue string, job CheckJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, queue, data).Err()
}

// Dequeue blocks for up to timeout waiting for a job on the right of the
// list. (nil, nil) means nothing arrived or ctx was cancelled, so callers
// can loop and check for shutdown.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*CheckJob, error) {
	result, err := r.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) < 2 {
		return nil, nil
	}
	var job CheckJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}

// QueueLen reports how many jobs are waiting.
func QueueLen(ctx context.Context, r *Redis, queue string) (int64, error) {
	return r.client.LLen(ctx, queue).Result()
}
