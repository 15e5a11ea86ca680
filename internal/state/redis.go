package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/readdigest/internal/logger"
)

// DefaultRedisKey holds the state document when the redis backend is used.
const DefaultRedisKey = "readdigest:state"

// redisClient is the subset of *redis.Client the store needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the state document as one JSON string value, so several
// hosts can share a seen list.
type RedisStore struct {
	client redisClient
	key    string
	closer func() error
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("state: redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("state: connect redis %s: %w", opts.Addr, err)
	}

	s := newRedisStore(rdb, opts.Key)
	s.closer = rdb.Close
	return s, nil
}

func newRedisStore(client redisClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Key returns the redis key holding the document.
func (r *RedisStore) Key() string {
	return r.key
}

// Load fetches the document. A missing key or an undecodable value yields
// the empty State; connection failures are returned.
func (r *RedisStore) Load(ctx context.Context) (State, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("redis get %s: %w", r.key, err)
	}

	st, err := Decode(raw)
	if err != nil {
		logger.Debugf("state key %s is unreadable, starting fresh: %v", r.key, err)
		return State{}, nil
	}
	return st, nil
}

// Save overwrites the document. SET replaces the value in one step.
func (r *RedisStore) Save(ctx context.Context, st State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Reset deletes the document.
func (r *RedisStore) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
