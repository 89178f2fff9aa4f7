package webhook

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

func fixedVerifier(now time.Time) *Verifier {
	v := NewVerifier(secret, 5*time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_AcceptsValidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	require.NoError(t, fixedVerifier(now).Verify(Sign(secret, now, body), body))
	require.NoError(t, fixedVerifier(now.Add(4*time.Minute)).Verify(Sign(secret, now, body), body))
}

func TestVerify_AcceptsAnyOfSeveralV1(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{}`)
	good := Sign(secret, now, body)
	header := fmt.Sprintf("t=%d,v1=deadbeef,v0=abc,%s", now.Unix(), good[len(fmt.Sprintf("t=%d,", now.Unix())):])

	require.NoError(t, fixedVerifier(now).Verify(header, body))
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"id":"evt_1"}`)
	v := fixedVerifier(now)

	cases := map[string]string{
		"empty":        "",
		"no timestamp": "v1=abcd",
		"no v1":        fmt.Sprintf("t=%d", now.Unix()),
		"bad ts":       "t=yesterday,v1=abcd",
		"wrong secret": Sign("other", now, body),
		"stale":        Sign(secret, now.Add(-10*time.Minute), body),
		"future":       Sign(secret, now.Add(10*time.Minute), body),
	}
	for name, header := range cases {
		err := v.Verify(header, body)
		assert.ErrorIs(t, err, ErrInvalidSignature, name)
	}

	// tampered body
	err := v.Verify(Sign(secret, now, body), []byte(`{"id":"evt_2"}`))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_NoSecretFailsClosed(t *testing.T) {
	body := []byte(`{}`)
	v := NewVerifier("", time.Minute)
	assert.ErrorIs(t, v.Verify(Sign("", time.Now(), body), body), ErrInvalidSignature)
}

func TestParse_CheckoutSessionCompleted(t *testing.T) {
	body := []byte(`{
		"id": "evt_cs",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_123",
			"object": "checkout.session",
			"client_reference_id": "order-1",
			"payment_intent": "pi_123",
			"payment_status": "paid",
			"amount_total": 11875,
			"metadata": {"order_id": "order-1", "charged_total_cents": "11875"}
		}}
	}`)

	evt, err := Parse(body)
	require.NoError(t, err)
	assert.True(t, evt.Relevant())

	p, err := evt.Payment()
	require.NoError(t, err)
	assert.Equal(t, "order-1", p.OrderID)
	assert.Equal(t, "pi_123", p.Reference)
	assert.Equal(t, int64(11875), p.AmountCents)
	assert.Equal(t, int64(11875), p.ChargedTotalCents)
	assert.True(t, p.Paid)
}

func TestParse_CheckoutSessionUnpaidAndExpandedIntent(t *testing.T) {
	body := []byte(`{"id":"evt_cs2","type":"checkout.session.completed","data":{"object":{
		"id":"cs_9","client_reference_id":"order-9","payment_intent":{"id":"pi_9"},"payment_status":"unpaid"}}}`)

	evt, err := Parse(body)
	require.NoError(t, err)
	p, err := evt.Payment()
	require.NoError(t, err)
	assert.Equal(t, "pi_9", p.Reference)
	assert.False(t, p.Paid)
}

func TestParse_PaymentIntentSucceeded(t *testing.T) {
	body := []byte(`{"id":"evt_pi","type":"payment_intent.succeeded","data":{"object":{
		"id":"pi_77","object":"payment_intent","amount_received":5000,"metadata":{"order_id":"order-77"}}}}`)

	evt, err := Parse(body)
	require.NoError(t, err)
	p, err := evt.Payment()
	require.NoError(t, err)
	assert.Equal(t, "order-77", p.OrderID)
	assert.Equal(t, "pi_77", p.Reference)
	assert.Equal(t, int64(5000), p.AmountCents)
	assert.Zero(t, p.ChargedTotalCents)
}

func TestParse_IrrelevantAndMalformed(t *testing.T) {
	evt, err := Parse([]byte(`{"id":"evt_x","type":"customer.created","data":{"object":{}}}`))
	require.NoError(t, err)
	assert.False(t, evt.Relevant())

	_, err = Parse([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = Parse([]byte(`{"type":"payment_intent.succeeded"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	evt, err = Parse([]byte(`{"id":"evt_y","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`))
	require.NoError(t, err)
	_, err = evt.Payment()
	assert.ErrorIs(t, err, ErrNoOrderID)
}
