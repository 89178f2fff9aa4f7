package repository

import (
	"checkout-reconciler/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionMiss = errors.New("checkout session not cached")

// CheckoutSessionRepository caches the last provider intent per (order, total)
// so a repeated checkout can resume it instead of asking the provider again.
type CheckoutSessionRepository interface {
	Get(ctx context.Context, orderID string, totalCents int64) (*model.CheckoutSession, error)
	Save(ctx context.Context, session *model.CheckoutSession) error
	Delete(ctx context.Context, orderID string, totalCents int64) error
}

type redisCheckoutSessionRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCheckoutSessionRepository(client *redis.Client, ttl time.Duration) CheckoutSessionRepository {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisCheckoutSessionRepo{client: client, ttl: ttl}
}

func (r *redisCheckoutSessionRepo) Get(ctx context.Context, orderID string, totalCents int64) (*model.CheckoutSession, error) {
	data, err := r.client.Get(ctx, checkoutSessionKey(orderID, totalCents)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var session model.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	return &session, nil
}

func (r *redisCheckoutSessionRepo) Save(ctx context.Context, session *model.CheckoutSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal checkout session: %w", err)
	}
	key := checkoutSessionKey(session.OrderID, session.TotalCents)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *redisCheckoutSessionRepo) Delete(ctx context.Context, orderID string, totalCents int64) error {
	if err := r.client.Del(ctx, checkoutSessionKey(orderID, totalCents)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func checkoutSessionKey(orderID string, totalCents int64) string {
	return fmt.Sprintf("checkout_session:%s:%d", orderID, totalCents)
}

// NopCheckoutSessionRepository is used when Redis is not configured; every
// lookup misses.
type NopCheckoutSessionRepository struct{}

func (NopCheckoutSessionRepository) Get(context.Context, string, int64) (*model.CheckoutSession, error) {
	return nil, ErrSessionMiss
}

func (NopCheckoutSessionRepository) Save(context.Context, *model.CheckoutSession) error {
	return nil
}

func (NopCheckoutSessionRepository) Delete(context.Context, string, int64) error {
	return nil
}

var (
	_ CheckoutSessionRepository = (*redisCheckoutSessionRepo)(nil)
	_ CheckoutSessionRepository = NopCheckoutSessionRepository{}
)
