package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderflow-backend/internal/clients"
	cartmodel "orderflow-backend/internal/domains/cart/model"
	"orderflow-backend/internal/domains/checkout/model"
	"orderflow-backend/internal/domains/checkout/service"
	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/shared/middleware"
	"orderflow-backend/internal/shared/response"
)

type CheckoutHandler struct {
	service *service.CheckoutService
}

func NewCheckoutHandler(svc *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: svc}
}

func (h *CheckoutHandler) Initiate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	session, warnings, err := h.service.Initiate(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, model.InitiateResponse{
		SessionID: session.ID.String(),
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		Totals:    session.Totals,
		Warnings:  warnings,
	})
}

func (h *CheckoutHandler) Complete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	email := c.GetString(middleware.ContextKeyUserEmail)
	customer := ordermodel.CustomerSnapshot{
		UserID: userID,
		Email:  email,
	}

	result, err := h.service.Complete(c.Request.Context(), userID, sessionID, customer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *CheckoutHandler) GetSession(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

func (h *CheckoutHandler) writeError(c *gin.Context, err error) {
	var drift *model.TotalsDriftedError
	if errors.As(err, &drift) {
		response.ErrorWithDetails(c, http.StatusConflict, model.ErrCodeTotalsDrifted,
			"Cart totals changed since checkout started", gin.H{
				"snapshotTotal": drift.SnapshotTotal.StringFixed(2),
				"currentTotal":  drift.CurrentTotal.StringFixed(2),
				"delta":         drift.Delta().StringFixed(2),
			})
		return
	}

	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		response.NotFound(c, "checkout session not found")
	case errors.Is(err, model.ErrNotOwner):
		response.Forbidden(c, "checkout session does not belong to you")
	case errors.Is(err, model.ErrCheckoutExpired):
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeCheckoutExpired, "Checkout session has expired")
	case errors.Is(err, model.ErrInvalidState):
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeInvalidState, "Checkout session is not open")
	case errors.Is(err, model.ErrCartEmpty), errors.Is(err, cartmodel.ErrCartNotFound):
		response.BadRequest(c, "cart is empty")
	case errors.Is(err, model.ErrCartInvalid):
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeCartInvalid, "Cart contains unavailable items")
	case errors.Is(err, model.ErrStockUnavailable):
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeStockUnavailable, "Some items are out of stock")
	case errors.Is(err, model.ErrNotServiceable):
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeNotServiceable, "Delivery is not available for this pincode")
	case errors.Is(err, clients.ErrPricingUnavailable):
		response.ServiceUnavailable(c, "PRICING_UNAVAILABLE", "Pricing service is unavailable")
	case errors.Is(err, clients.ErrCatalogUnavailable):
		response.ServiceUnavailable(c, "CATALOG_UNAVAILABLE", "Catalog service is unavailable")
	case errors.Is(err, clients.ErrInventoryUnavailable):
		response.ServiceUnavailable(c, "INVENTORY_UNAVAILABLE", "Inventory service is unavailable")
	case errors.Is(err, clients.ErrShippingUnavailable):
		response.ServiceUnavailable(c, "SHIPPING_UNAVAILABLE", "Shipping service is unavailable")
	default:
		response.InternalServerError(c, "something went wrong")
	}
}
