//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"patientflow/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	StoreContractSuite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.factory = NewRedis(s.redis.Client, "test", time.Minute)
}

func (s *RedisStoreSuite) TestKeysAndTTL() {
	st := s.factory.Scope("kiosk-9")
	s.Require().NoError(st.Save(s.ctx, somchai(), "tok"))

	ttl, err := s.redis.Client.TTL(s.ctx, "test:kiosk-9:authenticatedPatient").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	tok, err := s.redis.Client.Get(s.ctx, "test:kiosk-9:token").Result()
	s.Require().NoError(err)
	s.Equal("tok", tok)
}
