package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderflow-backend/internal/domains/invoice/model"
	"orderflow-backend/internal/domains/invoice/service"
	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/shared/middleware"
	"orderflow-backend/internal/shared/response"
)

type InvoiceHandler struct {
	service *service.InvoiceService
}

func NewInvoiceHandler(svc *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: svc}
}

// ===== CONSUMER ENDPOINTS =====

func (h *InvoiceHandler) ListMyInvoices(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	invoices, total, err := h.service.ListUserInvoices(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, invoices, &response.Meta{
		Page: page, Limit: limit, Total: total,
	})
}

func (h *InvoiceHandler) GetOrderInvoice(c *gin.Context) {
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

	invoice, err := h.service.GetByOrder(c.Request.Context(), &userID, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, invoice)
}

func (h *InvoiceHandler) DownloadInvoice(c *gin.Context) {
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

	url, err := h.service.DownloadURL(c.Request.Context(), &userID, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url})
}

// ===== ADMIN ENDPOINTS =====

func (h *InvoiceHandler) AdminGenerate(c *gin.Context) {
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

	regenerate := c.Query("regenerate") == "true"
	invoice, err := h.service.Generate(c.Request.Context(), orderID, userID.String(), regenerate)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, invoice)
}

// ===== ERROR MAPPING =====

func (h *InvoiceHandler) writeError(c *gin.Context, err error) {
	var invErr *model.InvoiceError
	if errors.As(err, &invErr) {
		switch {
		case errors.Is(err, model.ErrOrderNotEligible):
			response.ErrorResponse(c, http.StatusConflict, invErr.Code, invErr.Message)
		default:
			response.ErrorResponse(c, http.StatusUnprocessableEntity, invErr.Code, invErr.Message)
		}
		return
	}

	switch {
	case errors.Is(err, model.ErrInvoiceNotFound), errors.Is(err, model.ErrOrderNotInvoiced):
		response.NotFound(c, "invoice not found")
	case errors.Is(err, ordermodel.ErrOrderNotFound), errors.Is(err, ordermodel.ErrNotOwner):
		response.NotFound(c, "order not found")
	default:
		response.InternalServerError(c, "something went wrong")
	}
}
