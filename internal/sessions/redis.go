// internal/sessions/redis.go
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "verifyhub:session:token:"
	idKeyPrefix    = "verifyhub:session:id:"
)

// RedisStore keeps sessions as TTL keys, so Redis expires them and Sweep has
// nothing to do.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// Connect builds a client from a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Put(ctx context.Context, session *Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKeyPrefix+session.Token, raw, ttl)
		pipe.Set(ctx, idKeyPrefix+session.ID.String(), session.Token, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	raw, err := s.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisStore) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	token, err := s.client.Get(ctx, idKeyPrefix+id.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.GetByToken(ctx, token)
}

// Complete uses optimistic locking so two concurrent completions cannot both win.
func (s *RedisStore) Complete(ctx context.Context, token string, at time.Time) (*Session, error) {
	key := tokenKeyPrefix + token
	var completed *Session

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var session Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return err
		}
		if session.CompletedAt != nil {
			return ErrAlreadyCompleted
		}
		completedAt := at
		session.CompletedAt = &completedAt
		updated, err := json.Marshal(&session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err == nil {
			completed = &session
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrAlreadyCompleted
	}
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	session, err := s.GetByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.client.Del(ctx, tokenKeyPrefix+token, idKeyPrefix+session.ID.String()).Err()
}

func (s *RedisStore) Sweep(time.Time) int {
	return 0
}
