package handler

import (
	"checkout-reconciler/internal/service"
	"checkout-reconciler/internal/webhook"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// PaymentWebhook needs the raw body: the signature covers the exact bytes.
func (h *WebhookHandler) PaymentWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	outcome, err := h.webhookService.HandleWebhook(ctx, c.Request().Header.Get(webhook.SignatureHeader), body)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": string(outcome),
	})
}
