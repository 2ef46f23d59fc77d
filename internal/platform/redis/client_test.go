package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patientflow/internal/platform/config"
)

func TestNewRequiresURL(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.Error(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsInvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "mysql://nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}

func TestApplyOverridesKeepsURLDefaults(t *testing.T) {
	opts := &goredis.Options{PoolSize: 7, DialTimeout: time.Second}
	applyOverrides(opts, config.RedisConfig{ReadTimeout: 2 * time.Second})

	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
}
