//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qrscan/internal/scanner/ledger"
	"qrscan/pkg/testutil/containers"
)

type RedisLedgerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	ledger *ledger.RedisLedger
}

func TestRedisLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLedgerSuite))
}

func (s *RedisLedgerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.ledger = ledger.NewRedis(s.redis.Client, ledger.WithKeyPrefix("test:"))
}

func (s *RedisLedgerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLedgerSuite) TestClaimOnce() {
	ctx := context.Background()

	ok, err := s.ledger.Claim(ctx, "abc", time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.ledger.Claim(ctx, "abc", time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	ttl, err := s.redis.Client.PTTL(ctx, "test:abc").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisLedgerSuite) TestClaimExpires() {
	ctx := context.Background()

	ok, err := s.ledger.Claim(ctx, "short", 100*time.Millisecond)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Eventually(func() bool {
		ok, err := s.ledger.Claim(ctx, "short", time.Minute)
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)
}

func (s *RedisLedgerSuite) TestRelease() {
	ctx := context.Background()

	ok, err := s.ledger.Claim(ctx, "abc", time.Hour)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().NoError(s.ledger.Release(ctx, "abc"))

	ok, err = s.ledger.Claim(ctx, "abc", time.Hour)
	s.Require().NoError(err)
	s.True(ok)
}
