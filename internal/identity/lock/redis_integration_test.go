//go:build integration

package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"campusid/internal/identity/lock"
	"campusid/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *lock.RedisLocker
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.locker = lock.NewRedisLocker(s.redis.Client, 30*time.Second)
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockerSuite) TestMutualExclusion() {
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.locker.Acquire(ctx, "did:campus:alice")
			s.Require().NoError(err)
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(1, maxActive, "holders of the same DID must never overlap")
}

func (s *RedisLockerSuite) TestIndependentKeys() {
	ctx := context.Background()

	releaseA, err := s.locker.Acquire(ctx, "did:campus:alice")
	s.Require().NoError(err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := s.locker.Acquire(ctx, "did:campus:bob")
		s.NoError(err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("independent key blocked behind an unrelated holder")
	}
}

func (s *RedisLockerSuite) TestWaiterTimesOut() {
	release, err := s.locker.Acquire(context.Background(), "did:campus:alice")
	s.Require().NoError(err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = s.locker.Acquire(ctx, "did:campus:alice")
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *RedisLockerSuite) TestReleaseOnlyRemovesOwnLock() {
	ctx := context.Background()

	release1, err := s.locker.Acquire(ctx, "did:campus:alice")
	s.Require().NoError(err)
	release1()

	// A second holder acquires; replaying the first release must not evict it.
	release2, err := s.locker.Acquire(ctx, "did:campus:alice")
	s.Require().NoError(err)
	defer release2()
	release1()

	exists, err := s.redis.Client.Exists(ctx, "campusid:lock:did:campus:alice").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists, "second holder's lock must survive a stale release")
}

func (s *RedisLockerSuite) TestExpiredLockIsReacquirable() {
	ctx := context.Background()
	shortLocker := lock.NewRedisLocker(s.redis.Client, 100*time.Millisecond)

	_, err := shortLocker.Acquire(ctx, "did:campus:alice")
	s.Require().NoError(err)
	// Holder dies without releasing; TTL reclaims the lock.

	acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	release, err := shortLocker.Acquire(acquireCtx, "did:campus:alice")
	s.Require().NoError(err)
	release()
}
