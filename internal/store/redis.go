package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/lessonloop/internal/session"
)

const defaultRedisPrefix = "lessonloop:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`
	// Password is the Redis password (optional).
	Password string `yaml:"password"`
	// DB is the Redis database number.
	DB int `yaml:"db"`
	// Prefix is the key prefix for all keys (default: "lessonloop:").
	Prefix string `yaml:"prefix"`
	// SessionTTL is the session expiry duration (0 = never expire).
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// RedisSessionRepo implements SessionRepo on Redis so several engine
// processes can share sessions. Writes use WATCH/MULTI so a racing
// resumption loses with ErrConflict instead of overwriting.
type RedisSessionRepo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionRepo connects to Redis and verifies the connection.
func NewRedisSessionRepo(ctx context.Context, cfg RedisConfig) (*RedisSessionRepo, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisSessionRepoFromClient(client, cfg.Prefix, cfg.SessionTTL), nil
}

// NewRedisSessionRepoFromClient wraps an existing client.
func NewRedisSessionRepoFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionRepo {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisSessionRepo{client: client, prefix: prefix, ttl: ttl}
}

// Close releases the connection pool.
func (r *RedisSessionRepo) Close() error {
	return r.client.Close()
}

func (r *RedisSessionRepo) sessionKey(id string) string {
	return r.prefix + "session:" + id
}

func (r *RedisSessionRepo) awaitingKey() string {
	return r.prefix + "awaiting"
}

// storedSession is the envelope written to Redis. Version sits outside the
// document so it can be read without decoding the session.
type storedSession struct {
	Version int64           `json:"version"`
	State   json.RawMessage `json:"state"`
}

func (r *RedisSessionRepo) encode(s *session.Session, version int64) ([]byte, error) {
	snapshot := *s
	snapshot.Version = version
	state, err := json.Marshal(&snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return json.Marshal(storedSession{Version: version, State: state})
}

// index queues the awaiting-set change matching the session's stage.
func (r *RedisSessionRepo) index(ctx context.Context, pipe redis.Pipeliner, s *session.Session) {
	if s.Stage == session.StageAwaitResponse && !s.Done {
		pipe.SAdd(ctx, r.awaitingKey(), s.ID)
	} else {
		pipe.SRem(ctx, r.awaitingKey(), s.ID)
	}
}

func (r *RedisSessionRepo) Create(ctx context.Context, s *session.Session) error {
	data, err := r.encode(s, 1)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, r.sessionKey(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %q already exists: %w", s.ID, ErrConflict)
	}

	pipe := r.client.Pipeline()
	r.index(ctx, pipe, s)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index session: %w", err)
	}

	s.Version = 1
	return nil
}

func (r *RedisSessionRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var env storedSession
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("session %q: %w: %v", id, ErrCorrupted, err)
	}
	return decodeSession(id, env.State, env.Version)
}

func (r *RedisSessionRepo) Update(ctx context.Context, s *session.Session) error {
	key := r.sessionKey(s.ID)
	next := s.Version + 1

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %q: %w", s.ID, ErrSessionNotFound)
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		var env storedSession
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("session %q: %w: %v", s.ID, ErrCorrupted, err)
		}
		if env.Version != s.Version {
			return fmt.Errorf("session %q at version %d: %w", s.ID, s.Version, ErrConflict)
		}

		encoded, err := r.encode(s, next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, r.ttl)
			r.index(ctx, pipe, s)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("session %q at version %d: %w", s.ID, s.Version, ErrConflict)
	}
	if err != nil {
		return err
	}

	s.Version = next
	return nil
}

// ListAwaiting returns the ids in the awaiting set whose session key still
// exists. Ids left behind by sessions that expired through the TTL are
// removed from the set.
func (r *RedisSessionRepo) ListAwaiting(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.awaitingKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list awaiting sessions: %w", err)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	checks := make([]*redis.IntCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			checks[i] = pipe.Exists(ctx, r.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check awaiting sessions: %w", err)
	}

	live := ids[:0]
	var stale []any
	for i, id := range ids {
		if checks[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, r.awaitingKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune awaiting sessions: %w", err)
		}
	}
	return live, nil
}
