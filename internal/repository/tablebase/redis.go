package tablebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chess_analysis/internal/domain"
	apperrors "chess_analysis/internal/errors"
)

const keyPrefix = "tablebase:"

// RedisStore keeps definitive lookups in Redis so that they survive restarts
// and are shared between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

type storedLookup struct {
	Outcome  int8 `json:"o"`
	Margin   *int `json:"m,omitempty"`
	Precise  bool `json:"p,omitempty"`
	NotInTab bool `json:"n,omitempty"`
}

func (r *RedisStore) Get(ctx context.Context, key string) (domain.ExactLookup, bool, error) {
	v, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ExactLookup{}, false, nil
		}
		return domain.ExactLookup{}, false, err
	}
	lookup, err := decodeLookup(v)
	if err != nil {
		return domain.ExactLookup{}, false, err
	}
	return lookup, true, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, lookup domain.ExactLookup) error {
	v, err := encodeLookup(lookup)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+key, v, r.ttl).Err()
}

func encodeLookup(lookup domain.ExactLookup) ([]byte, error) {
	if lookup.Err != nil {
		if !errors.Is(lookup.Err, apperrors.ErrNotInTablebase) {
			return nil, fmt.Errorf("refusing to store transient failure: %w", lookup.Err)
		}
		return json.Marshal(storedLookup{NotInTab: true})
	}
	return json.Marshal(storedLookup{
		Outcome: int8(lookup.Result.Outcome),
		Margin:  lookup.Result.Margin,
		Precise: lookup.Result.Precise,
	})
}

func decodeLookup(v []byte) (domain.ExactLookup, error) {
	var s storedLookup
	if err := json.Unmarshal(v, &s); err != nil {
		return domain.ExactLookup{}, fmt.Errorf("decode stored lookup: %w", err)
	}
	if s.NotInTab {
		return domain.ExactLookup{Err: apperrors.ErrNotInTablebase}, nil
	}
	if s.Outcome < int8(domain.OutcomeLoss) || s.Outcome > int8(domain.OutcomeWin) {
		return domain.ExactLookup{}, fmt.Errorf("decode stored lookup: outcome %d out of range", s.Outcome)
	}
	return domain.ExactLookup{Result: domain.ExactResult{
		Outcome: domain.Outcome(s.Outcome),
		Margin:  s.Margin,
		Precise: s.Precise,
	}}, nil
}
