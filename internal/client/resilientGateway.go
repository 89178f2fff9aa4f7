package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

type ResilienceSettings struct {
	Timeout     time.Duration
	MaxFailures uint32
	Cooldown    time.Duration
}

// resilientGateway wraps provider calls in a timeout and a circuit breaker.
// Concurrent calls sharing an idempotency key go out as one request.
type resilientGateway struct {
	next    PaymentGateway
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*Intent]
	group   singleflight.Group
	logger  *slog.Logger
}

func NewResilientGateway(next PaymentGateway, settings ResilienceSettings, logger *slog.Logger) PaymentGateway {
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &resilientGateway{
		next:    next,
		timeout: settings.Timeout,
		logger:  logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker[*Intent](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return g
}

func (g *resilientGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	key := "create:" + req.IdempotencyKey
	if req.IdempotencyKey == "" {
		key = "create:" + IdempotencyKey(req.OrderID, req.Amount)
	}
	return g.call(ctx, key, "create intent", func(ctx context.Context) (*Intent, error) {
		return g.next.CreateIntent(ctx, req)
	})
}

func (g *resilientGateway) RetrieveIntent(ctx context.Context, reference string) (*Intent, error) {
	return g.call(ctx, "retrieve:"+reference, "retrieve intent", func(ctx context.Context) (*Intent, error) {
		return g.next.RetrieveIntent(ctx, reference)
	})
}

func (g *resilientGateway) call(ctx context.Context, key, op string, fn func(context.Context) (*Intent, error)) (*Intent, error) {
	ch := g.group.DoChan(key, func() (interface{}, error) {
		// the shared call must not die with whichever caller arrived first
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()

		intent, err := g.breaker.Execute(func() (*Intent, error) {
			return fn(callCtx)
		})
		if err != nil {
			return nil, asGatewayError(callCtx, op, err)
		}
		return intent, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Intent), nil
	case <-ctx.Done():
		return nil, &GatewayError{Op: op, Err: ctx.Err()}
	}
}

func asGatewayError(ctx context.Context, op string, err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &GatewayError{Op: op, Message: "provider unavailable, circuit open", Err: err}
	}
	if ctx.Err() != nil {
		return &GatewayError{Op: op, Message: "timed out", Err: ctx.Err()}
	}
	return &GatewayError{Op: op, Err: err}
}

// countsAsHealthy keeps caller mistakes (4xx other than 429) from tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 {
		return gwErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}
