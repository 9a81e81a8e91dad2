package schedule

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a delayed queue: a sorted set of job names scored by fire
// time, and a hash holding each job body. Re-registering a name overwrites
// both, which moves the job rather than duplicating it. A name back in the
// index after its claim was registered again mid-delivery; the worker's
// bookkeeping then leaves the new body alone.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

// envelope is the stored job plus its delivery bookkeeping.
type envelope struct {
	Job       Job    `json:"job"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
}

// KEYS: index, jobs hash. ARGV: name, delivered body.
// Deletes the body only if the name was not re-indexed and the body is unchanged.
var completeScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then return 0 end
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[2] then return 0 end
return redis.call('HDEL', KEYS[2], ARGV[1])
`)

// KEYS: index, jobs hash. ARGV: name, new body, score.
// Puts a retry back unless the name was registered again meanwhile.
var requeueScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then return 0 end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
return 1
`)

// KEYS: index, jobs hash, dead hash. ARGV: name, dead body.
// Always records the dead letter; keeps a body that was registered again.
var buryScript = redis.NewScript(`
redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then return 0 end
return redis.call('HDEL', KEYS[2], ARGV[1])
`)

func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	if key == "" {
		key = "entrygate:schedules"
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) jobsKey() string { return q.key + ":jobs" }
func (q *RedisQueue) deadKey() string { return q.key + ":dead" }

// Register stores the job and indexes it by fire time in one MULTI block.
func (q *RedisQueue) Register(ctx context.Context, job Job) error {
	return q.put(ctx, envelope{Job: job}, float64(job.FireAt.Unix()))
}

func (q *RedisQueue) put(ctx context.Context, env envelope, score float64) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", env.Job.Name, err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobsKey(), env.Job.Name, body)
		pipe.ZAdd(ctx, q.key, redis.Z{Score: score, Member: env.Job.Name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", env.Job.Name, err)
	}
	return nil
}

// due returns up to limit job names whose fire time is at or before unix.
func (q *RedisQueue) due(ctx context.Context, unix int64, limit int) ([]string, error) {
	return q.client.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:     q.key,
		Start:   "-inf",
		Stop:    fmt.Sprintf("%d", unix),
		ByScore: true,
		Count:   int64(limit),
	}).Result()
}

// claim removes name from the index. Only the caller that removed it may deliver it.
func (q *RedisQueue) claim(ctx context.Context, name string) (bool, error) {
	n, err := q.client.ZRem(ctx, q.key, name).Result()
	return n == 1, err
}

// load returns the stored envelope and its raw body, which complete compares
// against before deleting.
func (q *RedisQueue) load(ctx context.Context, name string) (envelope, []byte, bool, error) {
	raw, err := q.client.HGet(ctx, q.jobsKey(), name).Bytes()
	if err == redis.Nil {
		return envelope{}, nil, false, nil
	}
	if err != nil {
		return envelope{}, nil, false, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, nil, false, fmt.Errorf("decode job %s: %w", name, err)
	}
	return env, raw, true, nil
}

// complete drops a delivered body. It reports false when the job was
// registered again during delivery and the new body was kept.
func (q *RedisQueue) complete(ctx context.Context, name string, delivered []byte) (bool, error) {
	n, err := completeScript.Run(ctx, q.client, []string{q.key, q.jobsKey()}, name, delivered).Int()
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", name, err)
	}
	return n == 1, nil
}

// requeue schedules a retry at score. It reports false when a newer
// registration already holds the name.
func (q *RedisQueue) requeue(ctx context.Context, env envelope, score float64) (bool, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("encode job %s: %w", env.Job.Name, err)
	}
	n, err := requeueScript.Run(ctx, q.client, []string{q.key, q.jobsKey()}, env.Job.Name, body, score).Int()
	if err != nil {
		return false, fmt.Errorf("requeue job %s: %w", env.Job.Name, err)
	}
	return n == 1, nil
}

// bury moves an exhausted job to the dead-letter hash.
func (q *RedisQueue) bury(ctx context.Context, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	keys := []string{q.key, q.jobsKey(), q.deadKey()}
	if err := buryScript.Run(ctx, q.client, keys, env.Job.Name, body).Err(); err != nil {
		return fmt.Errorf("bury job %s: %w", env.Job.Name, err)
	}
	return nil
}

// Pending reports how many jobs are waiting.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

// Dead lists the names of jobs that exhausted their attempts.
func (q *RedisQueue) Dead(ctx context.Context) ([]string, error) {
	return q.client.HKeys(ctx, q.deadKey()).Result()
}
