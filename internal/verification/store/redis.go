package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"patientflow/internal/verification/models"
	"patientflow/internal/verification/ports"
)

// Redis is a Factory backed by Redis. Keys are <namespace>:<scope>:<name>.
type Redis struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	if namespace == "" {
		namespace = "patientflow"
	}
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

func (r *Redis) Scope(scope string) ports.SessionStore {
	return &RedisScope{parent: r, scope: scope}
}

// RedisScope is the SessionStore for one scope of a Redis factory.
type RedisScope struct {
	parent *Redis
	scope  string
}

func (s *RedisScope) key(name string) string {
	return fmt.Sprintf("%s:%s:%s", s.parent.namespace, s.scope, name)
}

// Save atomically clears both keys and writes the new identity and token.
// An empty token leaves the token key absent.
func (s *RedisScope) Save(ctx context.Context, identity models.PatientIdentity, token models.SessionToken) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode patient: %w", err)
	}

	_, err = s.parent.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(keyPatient), s.key(keyToken))
		pipe.Set(ctx, s.key(keyPatient), payload, s.parent.ttl)
		if !token.IsEmpty() {
			pipe.Set(ctx, s.key(keyToken), string(token), s.parent.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisScope) Load(ctx context.Context) (*models.PatientIdentity, models.SessionToken, error) {
	vals, err := s.parent.client.MGet(ctx, s.key(keyPatient), s.key(keyToken)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("load session: %w", err)
	}

	var token models.SessionToken
	if t, ok := vals[1].(string); ok {
		token = models.SessionToken(t)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, token, nil
	}
	var p models.PatientIdentity
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, "", fmt.Errorf("decode patient: %w", err)
	}
	return &p, token, nil
}

func (s *RedisScope) Clear(ctx context.Context) error {
	if err := s.parent.client.Del(ctx, s.key(keyPatient), s.key(keyToken)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
