package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
)

// ErrCartContended is returned when an update lost the optimistic race too
// many times in a row.
var ErrCartContended = errors.New("cart: too many concurrent updates")

const cartUpdateAttempts = 50

// CartStorage keeps one session's serialized cart under cart:{session}.
// Every save refreshes the TTL.
type CartStorage struct {
	Client redis.UniversalClient
	Key    string
	TTL    time.Duration
}

var (
	_ cart.Storage = (*CartStorage)(nil)
	_ cart.Updater = (*CartStorage)(nil)
)

func NewCartStorage(c redis.UniversalClient, session string, ttl time.Duration) *CartStorage {
	return &CartStorage{Client: c, Key: fmt.Sprintf(KeyCart, session), TTL: ttl}
}

func (s *CartStorage) Load(ctx context.Context) ([]byte, error) {
	b, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (s *CartStorage) Save(ctx context.Context, data []byte) error {
	return s.Client.Set(ctx, s.Key, data, s.TTL).Err()
}

// Update runs fn under WATCH on the cart key and writes its result in a
// MULTI block, retrying when another request changed the cart in between.
func (s *CartStorage) Update(ctx context.Context, fn func(old []byte) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, s.Key).Bytes()
		if errors.Is(err, redis.Nil) {
			old, err = nil, nil
		}
		if err != nil {
			return err
		}
		next, err := fn(old)
		if err != nil || next == nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.Key, next, s.TTL)
			return nil
		})
		return err
	}
	for i := 0; i < cartUpdateAttempts; i++ {
		err := s.Client.Watch(ctx, txf, s.Key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrCartContended
}

func (s *CartStorage) Erase(ctx context.Context) error {
	return s.Client.Del(ctx, s.Key).Err()
}
