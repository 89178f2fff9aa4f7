package handler

import (
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.checkoutService.Checkout(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.CheckoutResponse{
		OrderID:           result.Order.ID,
		Breakdown:         dto.NewBreakdownResponse(result.Breakdown),
		ProviderReference: result.Intent.Reference,
		ClientSecret:      result.Intent.ClientSecret,
		Resumed:           result.Resumed,
	})
}

func (h *CheckoutHandler) Finalize(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.FinalizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, transitioned, err := h.checkoutService.Finalize(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.MarkPaidResponse{
		Order:        dto.NewOrderResponse(order),
		Transitioned: transitioned,
	})
}
