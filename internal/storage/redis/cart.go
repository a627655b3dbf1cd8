// Package redis implements session state storage backed by Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/shopdesk/internal/domain/cart"
)

// DefaultCartTTL is how long an untouched cart is kept.
const DefaultCartTTL = 72 * time.Hour

const cartKeyPrefix = "shopdesk:cart:"

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store. Each cart is a single JSON value whose TTL
// is refreshed on every save; concurrent writers to one session are last
// write wins.
type CartStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewCartStore returns a CartStore. A non-positive ttl uses DefaultCartTTL.
func NewCartStore(client goredis.UniversalClient, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string {
	return cartKeyPrefix + sessionID
}

// Get loads the session's cart. It returns cart.ErrNotFound when the session
// has no cart or it has expired.
func (s *CartStore) Get(ctx context.Context, sessionID string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", sessionID, err)
	}

	c, err := decodeCart(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cart %q: %w", sessionID, err)
	}
	c.SessionID = sessionID
	return c, nil
}

// Save stores the cart and resets its TTL.
func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	data := encodeCart(c)
	if err := s.client.Set(ctx, cartKey(c.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving cart %q: %w", c.SessionID, err)
	}
	return nil
}

// Delete removes the session's cart. Deleting a missing cart is not an error.
func (s *CartStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("deleting cart %q: %w", sessionID, err)
	}
	return nil
}
