package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
)

var (
	ErrMalformedEvent = errors.New("malformed webhook event")
	ErrNoOrderID      = errors.New("webhook event has no order reference")
)

type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Payment is the part of a confirmation event the reconciler acts on.
type Payment struct {
	OrderID   string
	Reference string
	// AmountCents is what the provider reports as charged; zero when absent.
	AmountCents int64
	// ChargedTotalCents is the total stamped into metadata at intent creation;
	// zero when absent.
	ChargedTotalCents int64
	Paid              bool
}

type eventObject struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentIntent     json.RawMessage   `json:"payment_intent"`
	PaymentStatus     string            `json:"payment_status"`
	Status            string            `json:"status"`
	AmountTotal       int64             `json:"amount_total"`
	AmountReceived    int64             `json:"amount_received"`
	Metadata          map[string]string `json:"metadata"`
}

func Parse(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return &evt, nil
}

// Relevant reports whether the event type can mark an order paid.
func (e *Event) Relevant() bool {
	return e.Type == EventCheckoutSessionCompleted || e.Type == EventPaymentIntentSucceeded
}

func (e *Event) Payment() (*Payment, error) {
	var obj eventObject
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("%w: data.object: %v", ErrMalformedEvent, err)
	}

	p := &Payment{
		OrderID: obj.ClientReferenceID,
	}
	if p.OrderID == "" {
		p.OrderID = obj.Metadata["order_id"]
	}
	if p.OrderID == "" {
		return nil, ErrNoOrderID
	}
	if raw := obj.Metadata["charged_total_cents"]; raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			p.ChargedTotalCents = n
		}
	}

	switch e.Type {
	case EventCheckoutSessionCompleted:
		p.Reference = paymentIntentID(obj.PaymentIntent)
		if p.Reference == "" {
			p.Reference = obj.ID
		}
		p.AmountCents = obj.AmountTotal
		// async payment methods complete the session before funds arrive
		p.Paid = obj.PaymentStatus == "" || obj.PaymentStatus == "paid" || obj.PaymentStatus == "no_payment_required"
	case EventPaymentIntentSucceeded:
		p.Reference = obj.ID
		p.AmountCents = obj.AmountReceived
		p.Paid = true
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrMalformedEvent, e.Type)
	}
	return p, nil
}

// payment_intent is either an id string or an expanded object.
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}
