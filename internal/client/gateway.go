package client

import (
	"checkout-reconciler/internal/money"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrPaymentGateway = errors.New("payment gateway error")

// GatewayError carries the provider's own message. It matches ErrPaymentGateway
// under errors.Is.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("payment gateway %s: status=%d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("payment gateway %s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("payment gateway %s: %s", e.Op, e.Message)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrPaymentGateway
}

type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

// Resumable reports whether a buyer can still complete this intent.
func (s IntentStatus) Resumable() bool {
	switch s {
	case IntentRequiresPaymentMethod, IntentRequiresConfirmation, IntentRequiresAction:
		return true
	}
	return false
}

type IntentRequest struct {
	OrderID        string
	Amount         money.Money
	Currency       string
	IdempotencyKey string
}

type Intent struct {
	Reference    string
	ClientSecret string
	Status       IntentStatus
	AmountCents  int64
	Currency     string
	OrderID      string
}

// PaymentGateway creates and looks up provider intents for an exact amount.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, reference string) (*Intent, error)
}

// IdempotencyKey derives the provider idempotency key from the order and the
// exact charge in cents. Same pair, same key; a repriced total gets a new one.
func IdempotencyKey(orderID string, amount money.Money) string {
	payload, _ := json.Marshal(struct {
		OrderID string `json:"oid"`
		Total   int64  `json:"total"`
	}{orderID, amount.MinorUnits()})
	sum := sha256.Sum256(payload)
	return "fixedtotal:" + hex.EncodeToString(sum[:])
}
