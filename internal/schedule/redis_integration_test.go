//go:build integration

package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"entrygate/pkg/testutil/containers"
)

type RedisQueueSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	queue *RedisQueue
	ctx   context.Context
	now   time.Time
}

func TestRedisQueueSuite(t *testing.T) {
	suite.Run(t, new(RedisQueueSuite))
}

func (s *RedisQueueSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisQueueSuite) SetupTest() {
	s.Require().NoError(s.redis.Reset(s.ctx))
	s.queue = NewRedisQueue(s.redis.Client.Client, "test:schedules")
	s.now = time.Date(2026, 6, 12, 19, 0, 0, 0, time.UTC)
}

func (s *RedisQueueSuite) job(name string, fireAt time.Time) Job {
	return Job{Name: name, Kind: KindDraw, FireAt: fireAt, Payload: Payload{EntryID: name, Template: KindDraw}}
}

func (s *RedisQueueSuite) worker(handler Handler, opts ...WorkerOption) *Worker {
	opts = append(opts, withWorkerClock(func() time.Time { return s.now }))
	return NewWorker(s.queue, handler, opts...)
}

func (s *RedisQueueSuite) TestReRegisterMovesJob() {
	s.Require().NoError(s.queue.Register(s.ctx, s.job("a", s.now.Add(time.Hour))))
	s.Require().NoError(s.queue.Register(s.ctx, s.job("a", s.now.Add(-time.Minute))))

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pending)

	var got []string
	n, err := s.worker(func(_ context.Context, p Payload) error {
		got = append(got, p.EntryID)
		return nil
	}).Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal([]string{"a"}, got)
}

func (s *RedisQueueSuite) TestOnlyDueJobsAreDelivered() {
	s.Require().NoError(s.queue.Register(s.ctx, s.job("due", s.now)))
	s.Require().NoError(s.queue.Register(s.ctx, s.job("later", s.now.Add(time.Minute))))

	n, err := s.worker(func(context.Context, Payload) error { return nil }).Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, _ := s.queue.Pending(s.ctx)
	s.Equal(int64(1), pending)
}

func (s *RedisQueueSuite) TestFailedDeliveryRetriesThenDeadLetters() {
	s.Require().NoError(s.queue.Register(s.ctx, s.job("flaky", s.now)))
	calls := 0
	w := s.worker(func(context.Context, Payload) error {
		calls++
		return errors.New("mail provider down")
	}, WithMaxAttempts(2), WithRetryDelay(time.Minute))

	_, err := w.Poll(s.ctx)
	s.Require().NoError(err)
	pending, _ := s.queue.Pending(s.ctx)
	s.Equal(int64(1), pending, "requeued after first failure")

	_, _ = w.Poll(s.ctx)
	s.Equal(1, calls, "retry is delayed")

	s.now = s.now.Add(2 * time.Minute)
	_, err = w.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, calls)

	pending, _ = s.queue.Pending(s.ctx)
	s.Equal(int64(0), pending)
	dead, err := s.queue.Dead(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"flaky"}, dead)
}

func (s *RedisQueueSuite) TestConcurrentWorkersDeliverOnce() {
	for _, name := range []string{"a", "b", "c", "d"} {
		s.Require().NoError(s.queue.Register(s.ctx, s.job(name, s.now)))
	}
	delivered := make(chan string, 16)
	handler := func(_ context.Context, p Payload) error {
		delivered <- p.EntryID
		return nil
	}

	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			_, _ = s.worker(handler).Poll(s.ctx)
			done <- struct{}{}
		}()
	}
	<-done
	<-done
	close(delivered)

	seen := map[string]int{}
	for id := range delivered {
		seen[id]++
	}
	s.Len(seen, 4)
	for name, n := range seen {
		s.Equal(1, n, name)
	}
}

func (s *RedisQueueSuite) TestRegisteredAgainDuringDeliveryIsKept() {
	s.Require().NoError(s.queue.Register(s.ctx, s.job("a", s.now)))

	calls := 0
	w := s.worker(func(ctx context.Context, p Payload) error {
		calls++
		if calls == 1 {
			// a repair lands while the first delivery is in flight
			s.Require().NoError(s.queue.Register(ctx, s.job("a", s.now.Add(-time.Second))))
		}
		return nil
	})

	n, err := w.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	pending, _ := s.queue.Pending(s.ctx)
	s.Equal(int64(1), pending)

	n, err = w.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n, "the new registration still has its body")
	s.Equal(2, calls)

	pending, _ = s.queue.Pending(s.ctx)
	s.Equal(int64(0), pending)
	exists, err := s.redis.Client.HExists(s.ctx, s.queue.jobsKey(), "a").Result()
	s.Require().NoError(err)
	s.False(exists)
}

func (s *RedisQueueSuite) TestRetrySkippedWhenRegisteredAgain() {
	s.Require().NoError(s.queue.Register(s.ctx, s.job("a", s.now)))
	fresh := s.now.Add(time.Hour)

	w := s.worker(func(ctx context.Context, _ Payload) error {
		s.Require().NoError(s.queue.Register(ctx, s.job("a", fresh)))
		return errors.New("mail provider down")
	}, WithRetryDelay(time.Minute))

	_, err := w.Poll(s.ctx)
	s.Require().NoError(err)

	score, err := s.redis.Client.ZScore(s.ctx, s.queue.key, "a").Result()
	s.Require().NoError(err)
	s.Equal(float64(fresh.Unix()), score, "the retry did not override the new fire time")
	env, _, ok, err := s.queue.load(s.ctx, "a")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Zero(env.Attempts)
}

func (s *RedisQueueSuite) TestIndexedNameWithoutBodyIsDropped() {
	s.Require().NoError(s.redis.Client.ZAdd(s.ctx, s.queue.key, redis.Z{Score: float64(s.now.Unix()), Member: "orphan"}).Err())

	n, err := s.worker(func(context.Context, Payload) error {
		s.Fail("orphan must not be delivered")
		return nil
	}).Poll(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
	pending, _ := s.queue.Pending(s.ctx)
	s.Equal(int64(0), pending)
}
