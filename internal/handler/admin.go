package handler

import (
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/middleware"
	"checkout-reconciler/internal/service"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	orderService service.OrderService
	logger       *slog.Logger
}

func NewAdminHandler(orderService service.OrderService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// MarkPaid is the operator override for payments confirmed out of band.
func (h *AdminHandler) MarkPaid(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.MarkPaidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	orderID := c.Param("id")
	order, transitioned, err := h.orderService.MarkPaid(ctx, orderID, req.ProviderReference)
	if err != nil {
		return err
	}

	subject, _ := c.Get(middleware.ContextUser).(string)
	h.logger.InfoContext(ctx, "admin mark-paid",
		slog.String("order_id", orderID),
		slog.String("admin", subject),
		slog.Bool("transitioned", transitioned),
	)

	return c.JSON(http.StatusOK, dto.MarkPaidResponse{
		Order:        dto.NewOrderResponse(order),
		Transitioned: transitioned,
	})
}
