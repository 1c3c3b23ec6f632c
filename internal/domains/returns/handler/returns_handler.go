package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/returns/model"
	"orderflow-backend/internal/domains/returns/service"
	"orderflow-backend/internal/shared/middleware"
	"orderflow-backend/internal/shared/response"
)

type ReturnsHandler struct {
	service *service.ReturnsService
}

func NewReturnsHandler(svc *service.ReturnsService) *ReturnsHandler {
	return &ReturnsHandler{service: svc}
}

// ===== CONSUMER ENDPOINTS =====

func (h *ReturnsHandler) CreateReturn(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	ret, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, ret)
}

func (h *ReturnsHandler) ListMyReturns(c *gin.Context) {
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

	returns, total, err := h.service.ListUserReturns(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, returns, &response.Meta{
		Page: page, Limit: limit, Total: total,
	})
}

func (h *ReturnsHandler) GetReturn(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	returnID, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		response.BadRequest(c, "invalid return id")
		return
	}

	ret, err := h.service.GetReturn(c.Request.Context(), &userID, returnID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret)
}

func (h *ReturnsHandler) CancelReturn(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	returnID, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		response.BadRequest(c, "invalid return id")
		return
	}

	ret, err := h.service.Cancel(c.Request.Context(), userID, returnID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret)
}

// ===== ADMIN ENDPOINTS =====

func (h *ReturnsHandler) AdminListReturns(c *gin.Context) {
	status := model.ReturnStatus(c.DefaultQuery("status", string(model.StatusRequested)))

	returns, err := h.service.ListByStatus(c.Request.Context(), status, 100)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, returns)
}

func (h *ReturnsHandler) AdminApprove(c *gin.Context) {
	returnID, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		response.BadRequest(c, "invalid return id")
		return
	}

	ret, err := h.service.Approve(c.Request.Context(), returnID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret)
}

func (h *ReturnsHandler) AdminReject(c *gin.Context) {
	returnID, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		response.BadRequest(c, "invalid return id")
		return
	}

	var req model.RejectReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	ret, err := h.service.Reject(c.Request.Context(), returnID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret)
}

func (h *ReturnsHandler) AdminSchedulePickup(c *gin.Context) {
	returnID, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		response.BadRequest(c, "invalid return id")
		return
	}

	var req model.SchedulePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	ret, err := h.service.SchedulePickup(c.Request.Context(), returnID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret)
}

func (h *ReturnsHandler) AdminMarkPickedUp(c *gin.Context) {
	h.simpleTransition(c, h.service.MarkPickedUp)
}

func (h *ReturnsHandler) AdminMarkInTransit(c *gin.Context) {
	h.simpleTransition(c, h.service.MarkInTransit)
}

func (h *ReturnsHandler) AdminMarkReceived(c *gin.Context) {
	h.simpleTransition(c, h.service.MarkReceived)
}

func (h *ReturnsHandler) AdminComplete(c *gin.Context) {
	h.simpleTransition(c, h.service.Complete)
}

func (h *ReturnsHandler) AdminInspect(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	returnID, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		response.BadRequest(c, "invalid return id")
		return
	}

	var req model.InspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ValidationError(c, err)
		return
	}

	ret, err := h.service.Inspect(c.Request.Context(), adminID, returnID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret)
}

// ===== HELPERS =====

func (h *ReturnsHandler) simpleTransition(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.ReturnRequest, error)) {
	returnID, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		response.BadRequest(c, "invalid return id")
		return
	}

	ret, err := fn(c.Request.Context(), returnID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ret)
}

func (h *ReturnsHandler) writeError(c *gin.Context, err error) {
	var retErr *model.ReturnError
	if errors.As(err, &retErr) {
		switch {
		case errors.Is(err, model.ErrInvalidTransition),
			errors.Is(err, model.ErrNotCancellable):
			response.ErrorResponse(c, http.StatusConflict, retErr.Code, retErr.Message)
		case errors.Is(err, model.ErrWindowClosed):
			response.ErrorResponse(c, http.StatusUnprocessableEntity, retErr.Code, retErr.Message)
		default:
			response.ErrorResponse(c, http.StatusBadRequest, retErr.Code, retErr.Message)
		}
		return
	}

	switch {
	case errors.Is(err, model.ErrReturnNotFound):
		response.NotFound(c, "return not found")
	case errors.Is(err, ordermodel.ErrOrderNotFound), errors.Is(err, ordermodel.ErrNotOwner):
		response.NotFound(c, "order not found")
	case errors.Is(err, model.ErrInvalidVerdict):
		response.BadRequest(c, "invalid inspection verdict")
	default:
		response.InternalServerError(c, "something went wrong")
	}
}
