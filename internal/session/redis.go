package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "recgen:session:"

	// maxUpdateRetries bounds optimistic-lock retries when two requests of the
	// same session race on Update.
	maxUpdateRetries = 10
)

// ErrConflict is returned when Update keeps losing the optimistic lock.
var ErrConflict = errors.New("session: too many concurrent updates")

// NewRedisClient connects to redisURL and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument Redis client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// RedisStore keeps sessions in Redis so several server instances can share them.
// Each session is one JSON value whose TTL is refreshed on every update.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store. A zero ttl keeps sessions forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	return decodeState(data, err)
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the session in between.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*State, error) {
	key := s.key(id)
	var next *State

	txf := func(tx *redis.Tx) error {
		current, err := decodeState(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		current.UpdatedAt = s.now()

		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		next = current
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

func decodeState(data []byte, err error) (*State, error) {
	if errors.Is(err, redis.Nil) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if state.Ingredients == nil {
		state.Ingredients = []string{}
	}
	if state.Suggestions == nil {
		state.Suggestions = []string{}
	}
	return state, nil
}
