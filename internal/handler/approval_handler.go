package handler

import (
	"errors"
	"net/http"
	"strings"

	"marketplace/internal/apperr"
	"marketplace/internal/database"
	"marketplace/internal/middleware"
	"marketplace/internal/service"
	"marketplace/pkg/pagination"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RejectRequestDTO struct {
	Reason string `json:"reason"`
}

type ValidateTaxIDDTO struct {
	TaxID string `json:"tax_id"`
}

type ApprovalHandler struct {
	approvalService   service.ApprovalService
	validationService service.ValidationService
	orchestrator      service.Orchestrator
}

func NewApprovalHandler(approvalService service.ApprovalService, validationService service.ValidationService, orchestrator service.Orchestrator) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService:   approvalService,
		validationService: validationService,
		orchestrator:      orchestrator,
	}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/api/approvals")
	{
		approvals.POST("", middleware.RequireAuth(), h.SubmitRequest)
		approvals.GET("/pending", middleware.RequirePermission(database.PermApprovalsRead), h.ListPending)
		approvals.GET("/:id", middleware.RequirePermission(database.PermApprovalsRead), h.GetRequest)
		approvals.PUT("/:id/approve", middleware.RequirePermission(database.PermApprovalsApprove), h.ApproveRequest)
		approvals.PUT("/:id/reject", middleware.RequirePermission(database.PermApprovalsApprove), h.RejectRequest)
		approvals.POST("/:id/retry", middleware.RequirePermission(database.PermApprovalsApprove), h.RetryRequest)
		approvals.POST("/:id/validate-tax-id", middleware.RequirePermission(database.PermApprovalsRead), h.ValidateTaxID)
	}
}

// SubmitRequest stores a new registration or product listing for review
// @Summary      Submit approval request
// @Description  Submits a SUPPLIER/BUYER registration or a PRODUCT listing. The submitter is the token subject.
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.SubmitRequestDTO  true  "Request kind and payload"
// @Success      201  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/approvals [post]
func (h *ApprovalHandler) SubmitRequest(c *gin.Context) {
	var req service.SubmitRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	submitter := uuid.Nil
	if actor := middleware.ActorID(c); actor != nil {
		submitter = *actor
	}

	result, err := h.approvalService.Submit(c.Request.Context(), req.Kind, submitter, req.Payload)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListPending returns pending requests newest first
// @Summary      List pending requests
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        kind   query     string  false  "Filter by kind: SUPPLIER, BUYER, PRODUCT"
// @Param        page   query     int     false  "Page number (default: 1)"
// @Param        limit  query     int     false  "Items per page (default: 20)"
// @Success      200    {object}  response.Response{data=pagination.Page}
// @Failure      400    {object}  response.Response
// @Router       /api/approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	p := pagination.Parse(c)

	requests, total, err := h.approvalService.ListPending(c.Request.Context(), c.Query("kind"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(requests, total, p)))
}

// GetRequest returns one request with its validation verdict and decision
// @Summary      Get approval request
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.ApprovalRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/approvals/{id} [get]
func (h *ApprovalHandler) GetRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.approvalService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApproveRequest approves a pending request and runs its side effects
// @Summary      Approve request
// @Description  Commits the approval, then grants the role or promotes the catalog entry, mirrors and notifies. 207 when some steps failed.
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.DecisionResult}
// @Success      207  {object}  response.Response{data=service.DecisionResult}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/approvals/{id}/approve [put]
func (h *ApprovalHandler) ApproveRequest(c *gin.Context) {
	h.decide(c, service.DecisionApprove, "")
}

// RejectRequest rejects a pending request and notifies the submitter
// @Summary      Reject request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string            true   "Request ID"
// @Param        payload  body  RejectRequestDTO  false  "Rejection reason"
// @Success      200  {object}  response.Response{data=service.DecisionResult}
// @Success      207  {object}  response.Response{data=service.DecisionResult}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/approvals/{id}/reject [put]
func (h *ApprovalHandler) RejectRequest(c *gin.Context) {
	var req RejectRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body, the reason is optional
		req.Reason = ""
	}
	h.decide(c, service.DecisionReject, strings.TrimSpace(req.Reason))
}

// RetryRequest re-attempts the steps a decided request has not completed
// @Summary      Retry incomplete steps
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.DecisionResult}
// @Success      207  {object}  response.Response{data=service.DecisionResult}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/approvals/{id}/retry [post]
func (h *ApprovalHandler) RetryRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.orchestrator.Resume(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeDecision(c, result)
}

// ValidateTaxID re-runs the tax id format check and stores the verdict
// @Summary      Validate tax id
// @Description  Checks the given tax id, or the one in the registration payload when omitted.
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string            true   "Request ID"
// @Param        payload  body  ValidateTaxIDDTO  false  "Tax id override"
// @Success      200  {object}  response.Response{data=service.TaxIDVerdict}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/approvals/{id}/validate-tax-id [post]
func (h *ApprovalHandler) ValidateTaxID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ValidateTaxIDDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		req.TaxID = ""
	}

	verdict, err := h.validationService.ValidateRequest(c.Request.Context(), id, req.TaxID, middleware.ActorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, verdict))
}

func (h *ApprovalHandler) decide(c *gin.Context, decision service.Decision, reason string) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.orchestrator.Decide(c.Request.Context(), service.DecideInput{
		RequestID: id,
		Decision:  decision,
		Reason:    reason,
		ActorID:   middleware.ActorID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeDecision(c, result)
}

// writeDecision answers 200 when every step completed and 207 otherwise
func writeDecision(c *gin.Context, result *service.DecisionResult) {
	if result.Complete() {
		c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
		return
	}

	msgs := make([]string, 0, 3)
	for _, f := range result.Failures() {
		msgs = append(msgs, f.Error())
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "some steps are pending")
	}
	c.JSON(http.StatusMultiStatus, response.Partial(http.StatusMultiStatus, result, strings.Join(msgs, "; ")))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps workflow errors onto HTTP statuses
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflictAlreadyDecided), errors.Is(err, apperr.ErrNotDecided):
		status = http.StatusConflict
	}
	c.JSON(status, response.Error(status, err.Error()))
}
