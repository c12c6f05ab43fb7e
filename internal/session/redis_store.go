package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "waitline:session:"

type redisStore struct {
	client *redis.Client
}

// NewRedisStore backs the session store with a shared redis instance
// so any node can serve any request.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		// an undecodable blob is as good as no session
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *redisStore) Save(ctx context.Context, record *Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+record.ID, raw, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKeyPrefix+id).Err()
}
