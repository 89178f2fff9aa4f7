package handler

import (
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, b, err := h.orderService.CreateOrder(ctx, &req)
	if err != nil {
		return err
	}

	resp := dto.NewOrderResponse(order)
	resp.Breakdown.Warnings = b.Warnings
	return c.JSON(http.StatusCreated, resp)
}

// GetOrder returns the persisted breakdown as stored. It never reprices.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) Reprice(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RepriceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, b, err := h.orderService.Reprice(ctx, c.Param("id"), &req)
	if err != nil {
		return err
	}

	resp := dto.NewOrderResponse(order)
	resp.Breakdown.Warnings = b.Warnings
	return c.JSON(http.StatusOK, resp)
}
