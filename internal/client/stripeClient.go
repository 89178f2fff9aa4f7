package client

import (
	"checkout-reconciler/internal/config"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type stripeClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	secretKey  string
	currency   string
}

type stripePaymentIntent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ClientSecret string            `json:"client_secret"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewStripeClient(paymentCfg *config.Payment) PaymentGateway {
	return &stripeClientImpl{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseApiURL: strings.TrimRight(paymentCfg.BaseApiURL, "/"),
		secretKey:  paymentCfg.SecretKey,
		currency:   paymentCfg.Currency,
	}
}

func (c *stripeClientImpl) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount.MinorUnits(), 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("metadata[charged_total_cents]", strconv.FormatInt(req.Amount.MinorUnits(), 10))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/payment_intents",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &GatewayError{Op: "create intent", Err: fmt.Errorf("http new request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	var result stripePaymentIntent
	if err := c.do(httpReq, "create intent", &result); err != nil {
		return nil, err
	}
	return result.toIntent(), nil
}

func (c *stripeClientImpl) RetrieveIntent(ctx context.Context, reference string) (*Intent, error) {
	if reference == "" {
		return nil, &GatewayError{Op: "retrieve intent", Message: "empty reference"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/payment_intents/%s", c.baseApiURL, url.PathEscape(reference)),
		nil)
	if err != nil {
		return nil, &GatewayError{Op: "retrieve intent", Err: fmt.Errorf("http new request: %w", err)}
	}

	var result stripePaymentIntent
	if err := c.do(httpReq, "retrieve intent", &result); err != nil {
		return nil, err
	}
	return result.toIntent(), nil
}

func (c *stripeClientImpl) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		var errBody stripeErrorBody
		if json.Unmarshal(body, &errBody) == nil && errBody.Error.Message != "" {
			msg = errBody.Error.Message
		}
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &GatewayError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (p stripePaymentIntent) toIntent() *Intent {
	return &Intent{
		Reference:    p.ID,
		ClientSecret: p.ClientSecret,
		Status:       IntentStatus(p.Status),
		AmountCents:  p.Amount,
		Currency:     p.Currency,
		OrderID:      p.Metadata["order_id"],
	}
}
