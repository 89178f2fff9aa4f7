package server

import (
	"checkout-reconciler/internal/handler"
	authmw "checkout-reconciler/internal/middleware"
	"checkout-reconciler/internal/observability"
	"checkout-reconciler/internal/service"
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	echo            *echo.Echo
	adminSecret     string
	orderHandler    *handler.OrderHandler
	checkoutHandler *handler.CheckoutHandler
	webhookHandler  *handler.WebhookHandler
	adminHandler    *handler.AdminHandler
}

func NewServer(
	logger *slog.Logger,
	adminSecret string,
	orderService service.OrderService,
	checkoutService service.CheckoutService,
	webhookService service.WebhookService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(logger)

	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(observability.TracerName)))
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))

	s := &Server{
		echo:            e,
		adminSecret:     adminSecret,
		orderHandler:    handler.NewOrderHandler(orderService),
		checkoutHandler: handler.NewCheckoutHandler(checkoutService),
		webhookHandler:  handler.NewWebhookHandler(webhookService),
		adminHandler:    handler.NewAdminHandler(orderService, logger),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- orders --------
	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.CreateOrder)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.POST("/:id/reprice", s.orderHandler.Reprice)

	// -------- checkout --------
	checkout := api.Group("/checkout")
	checkout.POST("", s.checkoutHandler.Checkout)
	checkout.POST("/finalize", s.checkoutHandler.Finalize)

	// -------- provider webhooks --------
	api.POST("/payments/webhook", s.webhookHandler.PaymentWebhook)

	// -------- admin --------
	admin := api.Group("/admin", authmw.AdminAuth(s.adminSecret))
	admin.POST("/orders/:id/mark-paid", s.adminHandler.MarkPaid)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
