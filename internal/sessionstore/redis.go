package sessionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore keeps each session record in a redis hash with
// "credentials" and "keys" fields. Useful for hosted deployments where
// the process filesystem is ephemeral.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, username, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	vals, err := s.client.HGetAll(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	creds, err := unmarshalMapping(fieldOrEmpty(vals, "credentials"))
	if err != nil {
		return nil, fmt.Errorf("session %s credentials: %w", id, err)
	}
	keys, err := unmarshalKeys(fieldOrEmpty(vals, "keys"))
	if err != nil {
		return nil, fmt.Errorf("session %s keys: %w", id, err)
	}
	return &Record{ID: id, Credentials: creds, Keys: keys}, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, credentials map[string]any, keys map[string]map[string]any) error {
	credsText, err := marshalMapping(credentials)
	if err != nil {
		return err
	}
	keysText, err := marshalKeys(keys)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, redisKeyPrefix+id, "credentials", credsText, "keys", keysText).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) MergeKeys(ctx context.Context, id, category string, values map[string]any) error {
	keysText, err := s.client.HGet(ctx, redisKeyPrefix+id, "keys").Result()
	var keys map[string]map[string]any
	switch {
	case errors.Is(err, redis.Nil):
		keys = map[string]map[string]any{}
	case err != nil:
		return fmt.Errorf("load session %s keys: %w", id, err)
	default:
		keys, err = unmarshalKeys(keysText)
		if err != nil {
			return fmt.Errorf("session %s keys: %w", id, err)
		}
	}

	keys = mergeKeyMaps(keys, category, values)
	merged, err := marshalKeys(keys)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, redisKeyPrefix+id, "keys", merged).Err(); err != nil {
		return fmt.Errorf("save session %s keys: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// fieldOrEmpty covers hashes written by MergeKeys before any Put, where
// only one of the two fields exists yet.
func fieldOrEmpty(vals map[string]string, field string) string {
	if v, ok := vals[field]; ok && v != "" {
		return v
	}
	return "{}"
}
