package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"marketplace/internal/apperr"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

// taxIDPattern is the 15-character GSTIN layout: state code, PAN, entity number, Z, checksum.
var taxIDPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z]{1}[1-9A-Z]{1}Z[0-9A-Z]{1}$`)

const (
	taxIDValidMessage   = "GST number format is valid"
	taxIDInvalidMessage = "Invalid GST format. Expected format: 22AAAAA0000A1Z5"
)

// TaxIDVerdict is the outcome of a tax identifier format check.
type TaxIDVerdict struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ValidateTaxID checks raw against the GSTIN format. The input is matched exactly,
// without trimming or case folding.
func ValidateTaxID(raw string) TaxIDVerdict {
	if taxIDPattern.MatchString(raw) {
		return TaxIDVerdict{Valid: true, Message: taxIDValidMessage}
	}
	return TaxIDVerdict{Valid: false, Message: taxIDInvalidMessage}
}

type ValidationService interface {
	// ValidateRequest checks rawTaxID (or the payload's tax id when empty) and stores the
	// verdict on the request. Repeated calls overwrite the previous verdict.
	ValidateRequest(ctx context.Context, requestID uuid.UUID, rawTaxID string, actorID *uuid.UUID) (TaxIDVerdict, error)
}

type validationService struct {
	tm        repository.TransactionManager
	approvals repository.ApprovalRepository
	audit     repository.AuditRepository
}

func NewValidationService(tm repository.TransactionManager, approvals repository.ApprovalRepository, audit repository.AuditRepository) ValidationService {
	return &validationService{tm: tm, approvals: approvals, audit: audit}
}

func (s *validationService) ValidateRequest(ctx context.Context, requestID uuid.UUID, rawTaxID string, actorID *uuid.UUID) (TaxIDVerdict, error) {
	req, err := s.approvals.FindByID(ctx, requestID)
	if err != nil {
		return TaxIDVerdict{}, err
	}

	if rawTaxID == "" {
		if !req.IsRegistration() {
			return TaxIDVerdict{}, apperr.InvalidPayload("%s requests carry no tax id", req.Kind)
		}
		var payload model.RegistrationPayload
		if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
			return TaxIDVerdict{}, fmt.Errorf("decode stored payload: %w", err)
		}
		rawTaxID = payload.TaxID
	}

	verdict := ValidateTaxID(rawTaxID)
	status := model.ValidationInvalid
	if verdict.Valid {
		status = model.ValidationValid
	}

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.approvals.UpdateValidation(txCtx, requestID, status, verdict.Message); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]interface{}{
			"tax_id": rawTaxID,
			"status": status,
		})
		return s.audit.Log(txCtx, &model.AuditLog{
			UserID:     actorID,
			Action:     model.ActionValidateTaxID,
			EntityID:   requestID.String(),
			EntityName: req.Kind,
			Details:    string(details),
		})
	})
	if err != nil {
		return TaxIDVerdict{}, fmt.Errorf("failed to store validation verdict: %w", err)
	}

	return verdict, nil
}
