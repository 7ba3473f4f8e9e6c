package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrStale     = errors.New("cart changed while it was read")
)

// generationTTL outlives any snapshot, so a generation never resets under a
// live entry.
const generationTTL = 24 * time.Hour

// Cache keeps rendered cart snapshots, items included. Every mutation bumps
// the cart generation; a snapshot is only written under the generation that
// was current before its rows were read.
type Cache interface {
	Get(ctx context.Context, cartID string) (Cart, error)
	Generation(ctx context.Context, cartID string) (int64, error)
	Set(ctx context.Context, c Cart, gen int64) error
	Invalidate(ctx context.Context, cartID string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, cartID string) (Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, ErrCacheMiss
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return s.cart(), nil
}

func (r *RedisCache) Generation(ctx context.Context, cartID string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(cartID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// Set stores c with a jittered ttl so snapshots written together do not
// expire together. It returns ErrStale when the generation moved past gen.
func (r *RedisCache) Set(ctx context.Context, c Cart, gen int64) error {
	data, err := json.Marshal(newSnapshot(c))
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL
	if ttl > 0 {
		ttl += time.Duration(rand.Int63n(int64(ttl/3) + 1))
	}

	genKey := generationKey(c.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(c.ID), data, ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	case err != nil:
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate bumps the generation before dropping the snapshot, so a reader
// that started earlier can no longer write its copy back.
func (r *RedisCache) Invalidate(ctx context.Context, cartID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(cartID))
		pipe.Expire(ctx, generationKey(cartID), generationTTL)
		pipe.Del(ctx, cacheKey(cartID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func cacheKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

func generationKey(cartID string) string {
	return fmt.Sprintf("cart:gen:%s", cartID)
}

// snapshot is the cached form of a cart. The fingerprint is kept out of the
// api json but must survive the cache.
type snapshot struct {
	Cart
	Fingerprint string `json:"fingerprint"`
}

func newSnapshot(c Cart) snapshot {
	return snapshot{Cart: c, Fingerprint: c.Fingerprint}
}

func (s snapshot) cart() Cart {
	c := s.Cart
	c.Fingerprint = s.Fingerprint
	return c
}

// NoCache always misses.
type NoCache struct{}

func (NoCache) Get(context.Context, string) (Cart, error)         { return Cart{}, ErrCacheMiss }
func (NoCache) Generation(context.Context, string) (int64, error) { return 0, nil }
func (NoCache) Set(context.Context, Cart, int64) error            { return nil }
func (NoCache) Invalidate(context.Context, string) error          { return nil }
