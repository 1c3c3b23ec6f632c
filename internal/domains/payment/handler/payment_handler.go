package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/payment/model"
	"orderflow-backend/internal/domains/payment/service"
	"orderflow-backend/internal/shared/middleware"
	"orderflow-backend/internal/shared/response"
)

const signatureHeader = "X-Signature"

type PaymentHandler struct {
	payments *service.PaymentService
	refunds  *service.RefundService
}

func NewPaymentHandler(payments *service.PaymentService, refunds *service.RefundService) *PaymentHandler {
	return &PaymentHandler{payments: payments, refunds: refunds}
}

// ===== CONSUMER ENDPOINTS =====

func (h *PaymentHandler) VerifySignature(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.VerifySignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	result, err := h.payments.VerifySignature(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *PaymentHandler) ListOrderPayments(c *gin.Context) {
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

	payments, err := h.payments.ListOrderPayments(c.Request.Context(), userID, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, payments)
}

func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.RequestRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	refund, err := h.refunds.RequestRefund(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, refund)
}

func (h *PaymentHandler) GetRefund(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	refundID, err := uuid.Parse(c.Param("refundId"))
	if err != nil {
		response.BadRequest(c, "invalid refund id")
		return
	}

	refund, err := h.refunds.GetRefund(c.Request.Context(), &userID, refundID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, refund)
}

func (h *PaymentHandler) ListOrderRefunds(c *gin.Context) {
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

	refunds, err := h.refunds.ListOrderRefunds(c.Request.Context(), &userID, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, refunds)
}

// ===== WEBHOOK =====

// HandleWebhook verifies and applies a gateway callback. The signature
// covers the raw body, so it is read before any JSON binding.
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unable to read request body")
		return
	}

	signature := c.GetHeader(signatureHeader)
	if signature == "" {
		response.BadRequest(c, "missing signature header")
		return
	}

	if err := h.payments.ProcessWebhook(c.Request.Context(), body, signature); err != nil {
		if errors.Is(err, model.ErrInvalidSignature) {
			response.Unauthorized(c, "invalid webhook signature")
			return
		}
		// Non-2xx makes the gateway retry later.
		response.InternalServerError(c, "webhook processing failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"received": true})
}

// ===== ADMIN ENDPOINTS =====

func (h *PaymentHandler) AdminListRefunds(c *gin.Context) {
	status := model.RefundStatus(c.DefaultQuery("status", string(model.RefundRequested)))

	refunds, err := h.refunds.ListByStatus(c.Request.Context(), status, 100)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, refunds)
}

func (h *PaymentHandler) AdminApproveRefund(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	refundID, err := uuid.Parse(c.Param("refundId"))
	if err != nil {
		response.BadRequest(c, "invalid refund id")
		return
	}

	var req model.ApproveRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	refund, err := h.refunds.Approve(c.Request.Context(), adminID, refundID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, refund)
}

func (h *PaymentHandler) AdminRejectRefund(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	refundID, err := uuid.Parse(c.Param("refundId"))
	if err != nil {
		response.BadRequest(c, "invalid refund id")
		return
	}

	var req model.RejectRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	refund, err := h.refunds.Reject(c.Request.Context(), adminID, refundID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, refund)
}

func (h *PaymentHandler) AdminStats(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, -1, 0)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			response.BadRequest(c, "invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if toStr := c.Query("to"); toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			response.BadRequest(c, "invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	stats, err := h.payments.GetStats(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// ===== ERROR MAPPING =====

func (h *PaymentHandler) writeError(c *gin.Context, err error) {
	var payErr *model.PaymentError
	if errors.As(err, &payErr) {
		switch {
		case errors.Is(err, model.ErrInvalidSignature):
			response.ErrorResponse(c, http.StatusBadRequest, payErr.Code, payErr.Message)
		case errors.Is(err, model.ErrRefundNotActionable):
			response.ErrorResponse(c, http.StatusConflict, payErr.Code, payErr.Message)
		default:
			response.ErrorResponse(c, http.StatusUnprocessableEntity, payErr.Code, payErr.Message)
		}
		return
	}

	switch {
	case errors.Is(err, model.ErrPaymentNotFound):
		response.NotFound(c, "payment not found")
	case errors.Is(err, model.ErrRefundNotFound):
		response.NotFound(c, "refund not found")
	case errors.Is(err, ordermodel.ErrOrderNotFound), errors.Is(err, ordermodel.ErrNotOwner):
		response.NotFound(c, "order not found")
	default:
		response.InternalServerError(c, "something went wrong")
	}
}
