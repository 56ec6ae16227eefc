package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "docmap"

// Redis keeps history as one JSON list per user and dialog state as a
// JSON string with an idle expiry.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	stateTTL time.Duration
}

// RedisOptions configures key naming and state expiry. stateTTL <= 0
// keeps state until cleared.
type RedisOptions struct {
	Prefix   string
	StateTTL time.Duration
}

func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: opts.Prefix, stateTTL: opts.StateTTL}
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url string, opts RedisOptions) (*Redis, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, opts), nil
}

func (r *Redis) mapsKey(userID string) string  { return r.prefix + ":maps:" + userID }
func (r *Redis) stateKey(userID string) string { return r.prefix + ":state:" + userID }

func (r *Redis) Put(ctx context.Context, rec MapRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode map record: %w", err)
	}
	if err := r.client.RPush(ctx, r.mapsKey(rec.UserID), data).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, userID string) ([]MapRecord, error) {
	raw, err := r.client.LRange(ctx, r.mapsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]MapRecord, 0, len(raw))
	for _, item := range raw {
		var rec MapRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode map record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Last(ctx context.Context, userID string) (MapRecord, error) {
	raw, err := r.client.LIndex(ctx, r.mapsKey(userID), -1).Result()
	if errors.Is(err, redis.Nil) {
		return MapRecord{}, ErrNotFound
	}
	if err != nil {
		return MapRecord{}, fmt.Errorf("redis lindex: %w", err)
	}
	var rec MapRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return MapRecord{}, fmt.Errorf("decode map record: %w", err)
	}
	return rec, nil
}

func (r *Redis) Get(ctx context.Context, userID string, id uuid.UUID) (MapRecord, error) {
	recs, err := r.List(ctx, userID)
	if err != nil {
		return MapRecord{}, err
	}
	for _, rec := range recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return MapRecord{}, ErrNotFound
}

func (r *Redis) GetState(ctx context.Context, userID string) (State, error) {
	raw, err := r.client.Get(ctx, r.stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("redis get: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

func (r *Redis) SetState(ctx context.Context, userID string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := r.client.Set(ctx, r.stateKey(userID), data, r.stateTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) ClearState(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
