package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/domains/cart/model"
	"orderflow-backend/internal/domains/cart/service"
	"orderflow-backend/internal/shared/middleware"
	"orderflow-backend/internal/shared/response"
)

type CartHandler struct {
	service     *service.CartService
	revalidator *service.Revalidator
}

func NewCartHandler(svc *service.CartService, revalidator *service.Revalidator) *CartHandler {
	return &CartHandler{service: svc, revalidator: revalidator}
}

// ownerFromContext resolves the cart owner from the auth middlewares.
func ownerFromContext(c *gin.Context) (service.Owner, bool) {
	if userID, ok := middleware.GetUserID(c); ok {
		return service.Owner{UserID: &userID}, true
	}
	if token, ok := middleware.GetGuestToken(c); ok {
		return service.Owner{GuestToken: &token}, true
	}
	return service.Owner{}, false
}

// GetCart returns the owner's cart with items. A best-effort
// revalidation runs first; if pricing is down the stale cart is served
// with a warning instead of failing the read.
func (h *CartHandler) GetCart(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		response.Unauthorized(c, "user token or guest token required")
		return
	}

	cart, err := h.service.GetOrCreateCart(c.Request.Context(), owner)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var warnings []model.RevalidationWarning
	result, err := h.revalidator.RevalidateCart(c.Request.Context(), cart.ID)
	if err == nil {
		warnings = result.Warnings
		if !result.Clean() {
			_ = h.service.Recompute(c.Request.Context(), cart.ID)
			cart, err = h.service.GetOrCreateCart(c.Request.Context(), owner)
			if err != nil {
				h.writeError(c, err)
				return
			}
		}
	} else {
		warnings = append(warnings, model.RevalidationWarning{
			Code:     "PRICES_STALE",
			Severity: model.SeverityLow,
			Message:  "Prices could not be refreshed, showing cached values",
		})
	}

	items, err := h.service.GetCart(c.Request.Context(), owner)
	if err != nil {
		h.writeError(c, err)
		return
	}
	items.Warnings = warnings
	items.Cart = cart

	response.Success(c, http.StatusOK, items)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		response.Unauthorized(c, "user token or guest token required")
		return
	}

	var req model.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	item, err := h.service.AddItem(c.Request.Context(), owner, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, item)
}

func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		response.Unauthorized(c, "user token or guest token required")
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}

	var req model.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	if err := h.service.UpdateQuantity(c.Request.Context(), owner, itemID, req.Quantity); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		response.Unauthorized(c, "user token or guest token required")
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}

	if err := h.service.RemoveItem(c.Request.Context(), owner, itemID); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

func (h *CartHandler) Clear(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		response.Unauthorized(c, "user token or guest token required")
		return
	}

	if err := h.service.Clear(c.Request.Context(), owner); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}

func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		response.Unauthorized(c, "user token or guest token required")
		return
	}

	var req model.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	cart, err := h.service.ApplyCoupon(c.Request.Context(), owner, req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	owner, ok := ownerFromContext(c)
	if !ok {
		response.Unauthorized(c, "user token or guest token required")
		return
	}

	cart, err := h.service.RemoveCoupon(c.Request.Context(), owner, c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// Migrate re-owns a guest cart after login. Internal endpoint called by
// the auth service.
func (h *CartHandler) Migrate(c *gin.Context) {
	var req model.MigrateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	result, err := h.service.MergeGuestIntoUser(c.Request.Context(), req.GuestToken, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// writeError maps cart errors to HTTP responses.
func (h *CartHandler) writeError(c *gin.Context, err error) {
	var cartErr *model.CartError
	if errors.As(err, &cartErr) {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, model.ErrCartNotFound), errors.Is(err, model.ErrItemNotFound):
			status = http.StatusNotFound
		case errors.Is(err, model.ErrMergeInProgress), errors.Is(err, model.ErrCouponAlreadyUsed):
			status = http.StatusConflict
		}
		response.ErrorResponse(c, status, cartErr.Code, cartErr.Message)
		return
	}

	switch {
	case errors.Is(err, model.ErrCartNotFound),
		errors.Is(err, model.ErrItemNotFound),
		errors.Is(err, model.ErrProductNotFound),
		errors.Is(err, model.ErrCouponNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, model.ErrCartNotActive),
		errors.Is(err, model.ErrCouponAlreadyUsed),
		errors.Is(err, model.ErrMergeInProgress):
		response.Conflict(c, err.Error())
	case errors.Is(err, model.ErrOwnerRequired),
		errors.Is(err, model.ErrProductUnavailable):
		response.BadRequest(c, err.Error())
	case errors.Is(err, clients.ErrPricingUnavailable):
		response.ServiceUnavailable(c, "PRICING_UNAVAILABLE", "Pricing service is unavailable")
	case errors.Is(err, clients.ErrCatalogUnavailable):
		response.ServiceUnavailable(c, "CATALOG_UNAVAILABLE", "Catalog service is unavailable")
	default:
		response.InternalServerError(c, "something went wrong")
	}
}
