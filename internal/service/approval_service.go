package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/logging"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// --- DTOs ---

type SubmitRequestDTO struct {
	Kind    string          `json:"kind" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required" swaggertype:"object"`
}

type ValidationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ApprovalRequestResponse struct {
	ID              string              `json:"id"`
	Kind            string              `json:"kind"`
	Status          string              `json:"status"`
	SubmitterRef    string              `json:"submitter_ref"`
	Payload         json.RawMessage     `json:"payload" swaggertype:"object"`
	Validation      *ValidationResponse `json:"validation,omitempty"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	DecidedBy       *string             `json:"decided_by"`
	DecidedAt       *string             `json:"decided_at"`
	CreatedAt       string              `json:"created_at"`
}

// --- Interface ---

type ApprovalService interface {
	Submit(ctx context.Context, kind string, submitterRef uuid.UUID, payload []byte) (ApprovalRequestResponse, error)
	Get(ctx context.Context, id uuid.UUID) (ApprovalRequestResponse, error)
	ListPending(ctx context.Context, kind string, page, limit int) ([]ApprovalRequestResponse, int64, error)
}

type approvalService struct {
	tm         repository.TransactionManager
	approvals  repository.ApprovalRepository
	audit      repository.AuditRepository
	validation ValidationService
	validate   *validator.Validate
	log        zerolog.Logger
}

func NewApprovalService(tm repository.TransactionManager, approvals repository.ApprovalRepository, audit repository.AuditRepository, validation ValidationService) ApprovalService {
	return &approvalService{
		tm:         tm,
		approvals:  approvals,
		audit:      audit,
		validation: validation,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		log:        logging.Component("approvals"),
	}
}

// --- Implementation ---

// Submit validates and stores a new PENDING request. Registrations get their tax id
// checked right away; a failed check leaves the verdict PENDING for a later re-run.
func (s *approvalService) Submit(ctx context.Context, kind string, submitterRef uuid.UUID, payload []byte) (ApprovalRequestResponse, error) {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	if submitterRef == uuid.Nil {
		return ApprovalRequestResponse{}, apperr.InvalidPayload("submitter is required")
	}

	canonical, err := s.normalizePayload(kind, payload)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}

	req := model.ApprovalRequest{
		Kind:         kind,
		SubmitterRef: submitterRef,
		Payload:      string(canonical),
	}
	if req.IsRegistration() {
		req.ValidationStatus = model.ValidationPending
	}

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.approvals.Create(txCtx, &req); err != nil {
			return fmt.Errorf("failed to create approval request: %w", err)
		}

		details, _ := json.Marshal(map[string]interface{}{"kind": kind})
		if err := s.audit.Log(txCtx, &model.AuditLog{
			UserID:     &submitterRef,
			Action:     model.ActionSubmitRequest,
			EntityID:   req.ID.String(),
			EntityName: kind,
			Details:    string(details),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return ApprovalRequestResponse{}, err
	}

	if req.IsRegistration() {
		verdict, err := s.validation.ValidateRequest(ctx, req.ID, "", nil)
		if err != nil {
			s.log.Warn().Err(err).Str("request_id", req.ID.String()).Msg("tax id validation on submit failed")
		} else {
			req.ValidationStatus = model.ValidationInvalid
			if verdict.Valid {
				req.ValidationStatus = model.ValidationValid
			}
			req.ValidationMessage = verdict.Message
		}
	}

	s.log.Info().Str("request_id", req.ID.String()).Str("kind", kind).Msg("approval request submitted")
	return toApprovalResponse(req), nil
}

func (s *approvalService) Get(ctx context.Context, id uuid.UUID) (ApprovalRequestResponse, error) {
	req, err := s.approvals.FindByID(ctx, id)
	if err != nil {
		return ApprovalRequestResponse{}, err
	}
	return toApprovalResponse(*req), nil
}

func (s *approvalService) ListPending(ctx context.Context, kind string, page, limit int) ([]ApprovalRequestResponse, int64, error) {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	if kind != "" && !validKind(kind) {
		return nil, 0, apperr.InvalidPayload("unknown kind %q", kind)
	}

	requests, total, err := s.approvals.ListPending(ctx, kind, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch pending requests: %w", err)
	}

	res := make([]ApprovalRequestResponse, 0, len(requests))
	for _, r := range requests {
		res = append(res, toApprovalResponse(r))
	}
	return res, total, nil
}

// normalizePayload decodes the payload strictly for its kind, validates it and returns
// the canonical JSON that gets stored.
func (s *approvalService) normalizePayload(kind string, raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperr.InvalidPayload("payload is required")
	}

	var target interface{}
	switch kind {
	case model.RequestKindSupplier, model.RequestKindBuyer:
		target = &model.RegistrationPayload{}
	case model.RequestKindProduct:
		target = &model.ProductPayload{}
	default:
		return nil, apperr.InvalidPayload("unknown kind %q", kind)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, apperr.InvalidPayload("malformed payload: %v", err)
	}

	if err := s.validate.Struct(target); err != nil {
		return nil, apperr.InvalidPayload("%s", describeValidation(err))
	}
	if p, ok := target.(*model.ProductPayload); ok && !p.Price.IsPositive() {
		return nil, apperr.InvalidPayload("price must be greater than zero")
	}

	return json.Marshal(target)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func validKind(kind string) bool {
	switch kind {
	case model.RequestKindSupplier, model.RequestKindBuyer, model.RequestKindProduct:
		return true
	}
	return false
}

func toApprovalResponse(r model.ApprovalRequest) ApprovalRequestResponse {
	resp := ApprovalRequestResponse{
		ID:              r.ID.String(),
		Kind:            r.Kind,
		Status:          r.Status,
		SubmitterRef:    r.SubmitterRef.String(),
		Payload:         json.RawMessage(r.Payload),
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if r.ValidationStatus != "" {
		resp.Validation = &ValidationResponse{Status: r.ValidationStatus, Message: r.ValidationMessage}
	}
	if r.DecidedBy != nil {
		s := r.DecidedBy.String()
		resp.DecidedBy = &s
	}
	if r.DecidedAt != nil {
		s := r.DecidedAt.Format(time.RFC3339)
		resp.DecidedAt = &s
	}
	return resp
}
