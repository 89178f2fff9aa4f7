package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Kind string

const (
	KindOrderCreated     Kind = "order_created"
	KindPaymentConfirmed Kind = "payment_confirmed"
)

type Notification struct {
	Kind       Kind      `json:"kind"`
	OrderID    string    `json:"order_id"`
	Email      string    `json:"email,omitempty"`
	TotalCents int64     `json:"total_cents"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier is the outbound notification sink. Delivery is best-effort; callers
// never roll back state because a notification failed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "notification",
		slog.String("kind", string(n.Kind)),
		slog.String("order_id", n.OrderID),
		slog.Int64("total_cents", n.TotalCents),
	)
	return nil
}

// Async hands each notification to a goroutine detached from the request
// context and logs delivery failures.
type Async struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, logger *slog.Logger) *Async {
	return &Async{next: next, logger: logger, timeout: 10 * time.Second}
}

func (a *Async) Notify(ctx context.Context, n Notification) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(sendCtx, n); err != nil {
			a.logger.ErrorContext(sendCtx, "notification delivery failed",
				slog.String("kind", string(n.Kind)),
				slog.String("order_id", n.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}

// Wait blocks until in-flight notifications finish. Called on shutdown.
func (a *Async) Wait() {
	a.wg.Wait()
}
