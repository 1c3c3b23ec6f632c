package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/order/repository"
	"orderflow-backend/internal/domains/order/service"
	"orderflow-backend/internal/shared/middleware"
	"orderflow-backend/internal/shared/response"
)

type OrderHandler struct {
	service *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{service: svc}
}

// ===== CONSUMER ENDPOINTS =====

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	page, limit := pagination(c)
	orders, total, err := h.service.ListUserOrders(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, orders, &response.Meta{
		Page: page, Limit: limit, Total: total,
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	order, items, err := h.service.GetOrder(c.Request.Context(), orderID, &userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.OrderResponse{Order: order, Items: items})
}

func (h *OrderHandler) GetOrderHistory(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	// Ownership check first, history itself is unfiltered.
	if _, _, err := h.service.GetOrder(c.Request.Context(), orderID, &userID); err != nil {
		h.writeError(c, err)
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, history)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	var req model.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	// Ownership before mutation.
	if _, _, err := h.service.GetOrder(c.Request.Context(), orderID, &userID); err != nil {
		h.writeError(c, err)
		return
	}

	order, err := h.service.Cancel(c.Request.Context(), orderID,
		model.CancelReason(req.Reason), model.ActorCustomer, &userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// ===== ADMIN ENDPOINTS =====

func (h *OrderHandler) AdminListOrders(c *gin.Context) {
	page, limit := pagination(c)
	filter := repository.ListFilter{Page: page, Limit: limit}

	if status := c.Query("status"); status != "" {
		s := model.OrderStatus(status)
		filter.Status = &s
	}
	if ps := c.Query("paymentStatus"); ps != "" {
		p := model.PaymentStatus(ps)
		filter.PaymentStatus = &p
	}
	if userStr := c.Query("userId"); userStr != "" {
		userID, err := uuid.Parse(userStr)
		if err != nil {
			response.BadRequest(c, "invalid userId filter")
			return
		}
		filter.UserID = &userID
	}

	orders, total, err := h.service.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, orders, &response.Meta{
		Page: page, Limit: limit, Total: total,
	})
}

func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	order, items, err := h.service.GetOrder(c.Request.Context(), orderID, nil)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.OrderResponse{Order: order, Items: items})
}

func (h *OrderHandler) AdminUpdateStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	actorID := adminActorID(c)
	order, err := h.service.Transition(c.Request.Context(), orderID,
		model.OrderStatus(req.Status), model.ActorAdmin, actorID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

func (h *OrderHandler) AdminShipOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	var req model.ShipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	order, err := h.service.Ship(c.Request.Context(), orderID, req.Carrier, req.TrackingNumber, adminActorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

func (h *OrderHandler) AdminCancelOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	var req model.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	order, err := h.service.Cancel(c.Request.Context(), orderID,
		model.CancelReason(req.Reason), model.ActorAdmin, adminActorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// ===== HELPERS =====

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func adminActorID(c *gin.Context) *uuid.UUID {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return nil
	}
	return &userID
}

func (h *OrderHandler) writeError(c *gin.Context, err error) {
	var orderErr *model.OrderError
	if errors.As(err, &orderErr) {
		switch {
		case errors.Is(err, model.ErrInvalidTransition),
			errors.Is(err, model.ErrConcurrentUpdate),
			errors.Is(err, model.ErrNotCancellable):
			response.ErrorResponse(c, http.StatusConflict, orderErr.Code, orderErr.Message)
		default:
			response.ErrorResponse(c, http.StatusBadRequest, orderErr.Code, orderErr.Message)
		}
		return
	}

	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		response.NotFound(c, "order not found")
	case errors.Is(err, model.ErrNotOwner):
		response.NotFound(c, "order not found")
	case errors.Is(err, model.ErrInvalidCancelReason):
		response.BadRequest(c, "invalid cancel reason")
	default:
		response.InternalServerError(c, "something went wrong")
	}
}
