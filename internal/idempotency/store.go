// Package idempotency stores replayable responses for mutating endpoints.
// Clients send an Idempotency-Key header; retries of the same key get the
// recorded response instead of a second execution. A record only replays for
// the request fingerprint that produced it, so a key reused with a different
// payload is a conflict, never a stale replay.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "idem:"
	placeholderPrefix = "__pending__:"
)

// placeholderTTL bounds how long a reservation whose owner never finished
// (crashed mid-execution) can block retries of the same key.
const placeholderTTL = 30 * time.Second

var (
	// ErrInFlight means another request with the same key is still executing.
	ErrInFlight = errors.New("request with this idempotency key is in flight")
	// ErrHashMismatch means the key was reused with a different request.
	ErrHashMismatch = errors.New("idempotency key reused with a different request")
)

// Record is the stored outcome of the first execution.
type Record struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
	Hash   string `json:"hash"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Reserve claims the key for this request. It returns (nil, true) when the
// caller won the claim and must execute, or the recorded response when a
// previous execution with the same fingerprint already finished.
func (s *Store) Reserve(ctx context.Context, key, hash string) (*Record, bool, error) {
	pttl := placeholderTTL
	if s.ttl < pttl {
		pttl = s.ttl
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+key, placeholderPrefix+hash, pttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		// the placeholder expired between SetNX and Get, treat as in flight
		return nil, false, ErrInFlight
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	if pending, found := strings.CutPrefix(raw, placeholderPrefix); found {
		if pending != hash {
			return nil, false, ErrHashMismatch
		}
		return nil, false, ErrInFlight
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, false, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	if record.Hash != hash {
		return nil, false, ErrHashMismatch
	}
	return &record, false, nil
}

// Save records the response for replay. Called after a successful execution.
func (s *Store) Save(ctx context.Context, key, hash string, status int, body []byte) error {
	raw, err := json.Marshal(Record{Status: status, Body: body, Hash: hash})
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	return nil
}

// Release frees a reserved key so the client can retry after a failure.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
