package service

import (
	"checkout-reconciler/internal/client"
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/notification"
	"checkout-reconciler/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisSessions(t *testing.T) repository.CheckoutSessionRepository {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return repository.NewCheckoutSessionRepository(rdb, time.Minute)
}

func TestCheckout_CreatesIntentForPersistedTotal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	id := h.createOrder(t)

	res, err := h.checkout.Checkout(ctx, &dto.CheckoutRequest{
		OrderID:         id,
		ShippingMethod:  "expedited",
		ShippingAddress: dto.ShippingAddress{Country: "US", State: "NY"},
	})
	require.NoError(t, err)

	assert.Equal(t, "19.95", res.Breakdown.Shipping.String())
	assert.Equal(t, "128.83", res.Order.Total.String())
	assert.Equal(t, int64(12883), res.Intent.AmountCents)
	assert.False(t, res.Resumed)
}

func TestCheckout_ResumesCachedIntentForSameTotal(t *testing.T) {
	h := newHarness(t, redisSessions(t))
	ctx := context.Background()
	id := h.createOrder(t)
	req := &dto.CheckoutRequest{OrderID: id, ShippingMethod: "standard", ShippingAddress: dto.ShippingAddress{Country: "US", State: "NY"}}

	first, err := h.checkout.Checkout(ctx, req)
	require.NoError(t, err)
	second, err := h.checkout.Checkout(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.Intent.Reference, second.Intent.Reference)
	assert.Equal(t, 1, h.gateway.creates)

	// a changed total must not reuse the old intent
	req.ShippingMethod = "overnight"
	third, err := h.checkout.Checkout(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Resumed)
	assert.NotEqual(t, first.Intent.Reference, third.Intent.Reference)
	assert.Equal(t, 2, h.gateway.creates)
}

func TestCheckout_DoesNotResumeFinishedIntent(t *testing.T) {
	h := newHarness(t, redisSessions(t))
	ctx := context.Background()
	id := h.createOrder(t)
	req := &dto.CheckoutRequest{OrderID: id, ShippingMethod: "standard"}

	first, err := h.checkout.Checkout(ctx, req)
	require.NoError(t, err)
	h.gateway.setStatus(first.Intent.Reference, client.IntentCanceled)

	second, err := h.checkout.Checkout(ctx, req)
	require.NoError(t, err)
	assert.False(t, second.Resumed)
	assert.Equal(t, 2, h.gateway.creates)
}

func TestCheckout_Rejections(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	free, _, err := h.orders.CreateOrder(ctx, &dto.CreateOrderRequest{
		Items:          []*dto.Item{{ProductID: "gift", UnitPrice: "60.00", Quantity: 1}},
		ShippingMethod: "standard",
	})
	require.NoError(t, err)
	hundred := 100
	_, _, err = h.orders.Reprice(ctx, free.ID, &dto.RepriceRequest{DiscountPercent: &hundred})
	require.NoError(t, err)
	// nothing left to charge once merchandise is free and the method prices at zero
	res, err := h.checkout.Checkout(ctx, &dto.CheckoutRequest{OrderID: free.ID, ShippingMethod: "teleport"})
	require.ErrorIs(t, err, ErrZeroTotal)
	assert.Nil(t, res)

	paidID := h.createOrder(t)
	_, _, err = h.orders.MarkPaid(ctx, paidID, "pi_done")
	require.NoError(t, err)
	_, err = h.checkout.Checkout(ctx, &dto.CheckoutRequest{OrderID: paidID, ShippingMethod: "standard"})
	require.ErrorIs(t, err, ErrOrderAlreadyPaid)

	h.gateway.err = &client.GatewayError{Op: "create intent", StatusCode: 500, Message: "boom"}
	_, err = h.checkout.Checkout(ctx, &dto.CheckoutRequest{OrderID: h.createOrder(t), ShippingMethod: "standard"})
	require.ErrorIs(t, err, client.ErrPaymentGateway)
}

func TestFinalize(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	id := h.createOrder(t)

	res, err := h.checkout.Checkout(ctx, &dto.CheckoutRequest{OrderID: id, ShippingMethod: "standard"})
	require.NoError(t, err)
	ref := res.Intent.Reference

	_, _, err = h.checkout.Finalize(ctx, &dto.FinalizeRequest{OrderID: id, ProviderReference: ref})
	require.ErrorIs(t, err, ErrPaymentNotConfirmed)

	h.gateway.setStatus(ref, client.IntentSucceeded)
	order, transitioned, err := h.checkout.Finalize(ctx, &dto.FinalizeRequest{OrderID: id, ProviderReference: ref})
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.True(t, order.IsPaid())

	// a second finalize is a no-op success
	_, transitioned, err = h.checkout.Finalize(ctx, &dto.FinalizeRequest{OrderID: id, ProviderReference: ref})
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, 1, h.notifier.count(notification.KindPaymentConfirmed))

	other := h.createOrder(t)
	_, _, err = h.checkout.Finalize(ctx, &dto.FinalizeRequest{OrderID: other, ProviderReference: ref})
	require.ErrorIs(t, err, ErrReferenceMismatch)

	_, _, err = h.checkout.Finalize(ctx, &dto.FinalizeRequest{OrderID: other, ProviderReference: "pi_unknown"})
	require.True(t, errors.Is(err, client.ErrPaymentGateway))
}
