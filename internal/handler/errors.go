package handler

import (
	"checkout-reconciler/internal/client"
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/money"
	"checkout-reconciler/internal/service"
	"checkout-reconciler/internal/webhook"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type apiError struct {
	status int
	code   string
}

// classify maps domain errors onto HTTP status and a stable error code.
func classify(err error) apiError {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, webhook.ErrInvalidSignature):
		return apiError{http.StatusBadRequest, "invalid_signature"}
	case errors.Is(err, webhook.ErrMalformedEvent):
		return apiError{http.StatusBadRequest, "malformed_event"}
	case errors.As(err, &validationErrs):
		return apiError{http.StatusBadRequest, "validation_failed"}
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, money.ErrInvalidFormat):
		return apiError{http.StatusBadRequest, "invalid_input"}
	case errors.Is(err, service.ErrOrderNotFound):
		return apiError{http.StatusNotFound, "order_not_found"}
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		return apiError{http.StatusConflict, "order_already_paid"}
	case errors.Is(err, service.ErrPaymentNotConfirmed):
		return apiError{http.StatusConflict, "payment_not_confirmed"}
	case errors.Is(err, service.ErrReferenceMismatch):
		return apiError{http.StatusConflict, "reference_mismatch"}
	case errors.Is(err, service.ErrZeroTotal):
		return apiError{http.StatusUnprocessableEntity, "zero_total"}
	case errors.Is(err, client.ErrPaymentGateway):
		return apiError{http.StatusBadGateway, "payment_gateway_error"}
	default:
		return apiError{http.StatusInternalServerError, "internal_error"}
	}
}

// HTTPErrorHandler renders every error returned by a handler as a
// dto.ErrorResponse. 5xx responses are logged with the underlying cause.
func HTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   dto.ErrorResponse
		)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body = dto.ErrorResponse{Error: codeForStatus(he.Code), Message: fmt.Sprint(he.Message)}
		} else {
			ae := classify(err)
			status = ae.status
			body = dto.ErrorResponse{Error: ae.code, Message: err.Error()}
			if status == http.StatusInternalServerError {
				body.Message = http.StatusText(status)
			}
		}

		ctx := c.Request().Context()
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.String("error", err.Error()),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.ErrorContext(ctx, "write error response", slog.String("error", err.Error()))
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	default:
		if status >= http.StatusInternalServerError {
			return "internal_error"
		}
		return "request_error"
	}
}
