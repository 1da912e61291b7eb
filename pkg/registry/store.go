// Package registry is the external nullifier bookkeeping the circuits
// deliberately leave out: a redis-backed set of seen nullifier values so a
// consumer can reject a second attestation from the same (secret, context)
// pair.
package registry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "zkattest:nullifier:"

type NullifierStore struct {
	client *redis.Client
}

func NewNullifierStore(url string) (*NullifierStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &NullifierStore{client: redis.NewClient(opts)}, nil
}

// CheckAndRecord marks a nullifier as seen. It returns true when the value
// was fresh; false means the same nullifier was already recorded and the
// attestation must be rejected as a replay.
func (s *NullifierStore) CheckAndRecord(ctx context.Context, nullifier string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// No expiry: a consumed nullifier stays consumed.
		ttl = 0
	}
	return s.client.SetNX(ctx, keyPrefix+nullifier, "1", ttl).Result()
}

// Seen reports whether a nullifier was recorded without consuming it.
func (s *NullifierStore) Seen(ctx context.Context, nullifier string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+nullifier).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *NullifierStore) Close() error {
	return s.client.Close()
}
