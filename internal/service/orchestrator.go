package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/config"
	"marketplace/internal/logging"
	"marketplace/internal/mirror"
	"marketplace/internal/model"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/internal/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Decision is the admin verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// targetStatus maps a decision to the terminal status it commits.
func (d Decision) targetStatus() (string, bool) {
	switch d {
	case DecisionApprove:
		return model.ApprovalApproved, true
	case DecisionReject:
		return model.ApprovalRejected, true
	}
	return "", false
}

// StepStatus is the per-step outcome reported to the caller.
type StepStatus string

const (
	StepOK      StepStatus = "OK"
	StepFailed  StepStatus = "FAILED"
	StepPending StepStatus = "PENDING" // not attempted because an earlier step failed
	StepSkipped StepStatus = "SKIPPED" // not part of this decision's path
)

type StepResult struct {
	Status  StepStatus `json:"status"`
	Error   string     `json:"error,omitempty"`
	Timeout bool       `json:"timeout,omitempty"`
	Err     error      `json:"-"`
}

type DecisionSteps struct {
	Materialize StepResult `json:"materialize"`
	Mirror      StepResult `json:"mirror"`
	Notify      StepResult `json:"notify"`
}

// DecisionResult is the partial-success shape returned by Decide. Committed reports whether
// this call performed the status transition; Resumed whether it continued an earlier decision.
type DecisionResult struct {
	RequestID      uuid.UUID              `json:"request_id"`
	Kind           string                 `json:"kind"`
	Decision       Decision               `json:"decision"`
	Status         string                 `json:"status"`
	Committed      bool                   `json:"committed"`
	Resumed        bool                   `json:"resumed"`
	Steps          DecisionSteps          `json:"steps"`
	Channels       []notify.ChannelResult `json:"channels"`
	RetryScheduled bool                   `json:"retry_scheduled"`
}

// Complete reports whether every step on the decision's path succeeded.
func (r *DecisionResult) Complete() bool {
	for _, s := range []StepResult{r.Steps.Materialize, r.Steps.Mirror, r.Steps.Notify} {
		if s.Status != StepOK && s.Status != StepSkipped {
			return false
		}
	}
	return true
}

// Failures returns the step failures carried by the result.
func (r *DecisionResult) Failures() []*apperr.StepFailure {
	var out []*apperr.StepFailure
	for _, s := range []StepResult{r.Steps.Materialize, r.Steps.Mirror, r.Steps.Notify} {
		var sf *apperr.StepFailure
		if errors.As(s.Err, &sf) {
			out = append(out, sf)
		}
	}
	return out
}

type DecideInput struct {
	RequestID uuid.UUID
	Decision  Decision
	Reason    string
	ActorID   *uuid.UUID
	// Retry absorbs ConflictAlreadyDecided when the recorded decision matches and
	// re-attempts the steps that have not completed.
	Retry bool
}

// Notifier is the dispatcher contract the orchestrator depends on.
type Notifier interface {
	Channels(eventType string) []string
	Dispatch(ctx context.Context, eventType string, data map[string]string, opts ...notify.DispatchOption) []notify.ChannelResult
}

// RetryScheduler queues a later resume of an incomplete decision.
type RetryScheduler interface {
	ScheduleResume(ctx context.Context, requestID uuid.UUID, delay time.Duration) error
}

type OrchestratorConfig struct {
	MaterializeTimeout time.Duration
	MirrorTimeout      time.Duration
	NotifyTimeout      time.Duration
	RetryDelay         time.Duration
}

func NewOrchestratorConfig(c config.OrchestratorConfig) OrchestratorConfig {
	return OrchestratorConfig{
		MaterializeTimeout: c.MaterializeTimeout,
		MirrorTimeout:      c.MirrorTimeout,
		NotifyTimeout:      c.NotifyTimeout,
		RetryDelay:         c.RetryDelay,
	}
}

// OrchestratorDeps groups the collaborators of the orchestrator. Scheduler may be nil.
type OrchestratorDeps struct {
	TxManager     repository.TransactionManager
	Approvals     repository.ApprovalRepository
	Catalog       repository.CatalogRepository
	Roles         repository.RoleRepository
	Effects       repository.EffectRepository
	Notifications repository.NotificationRepository
	Audit         repository.AuditRepository
	Mirror        mirror.Sink
	Notifier      Notifier
	Scheduler     RetryScheduler
}

type Orchestrator interface {
	Decide(ctx context.Context, in DecideInput) (*DecisionResult, error)
	// Resume re-attempts the incomplete steps of an already decided request.
	Resume(ctx context.Context, requestID uuid.UUID) (*DecisionResult, error)
}

type orchestrator struct {
	OrchestratorDeps
	cfg OrchestratorConfig
	log zerolog.Logger
}

func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) Orchestrator {
	if deps.Mirror == nil {
		deps.Mirror = mirror.Nop{}
	}
	return &orchestrator{
		OrchestratorDeps: deps,
		cfg:              cfg,
		log:              logging.Component("orchestrator"),
	}
}

// Mirror sheet names per request kind
var sheetByKind = map[string]string{
	model.RequestKindSupplier: "Suppliers",
	model.RequestKindBuyer:    "Buyers",
	model.RequestKindProduct:  "Products",
}

const mirrorKeyField = "request_id"

// Decide commits the decision with a compare-and-swap and then runs the post-decision
// steps. Only the commit can fail the call; step failures are reported in the result.
func (o *orchestrator) Decide(ctx context.Context, in DecideInput) (res *DecisionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.decide",
		attribute.String("request.id", in.RequestID.String()),
		attribute.String("decision", string(in.Decision)),
		attribute.Bool("retry", in.Retry),
	)
	defer func() { tracing.EndSpan(span, err) }()

	target, ok := in.Decision.targetStatus()
	if !ok {
		return nil, apperr.InvalidPayload("unknown decision %q", in.Decision)
	}

	req, err := o.Approvals.FindByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	res = &DecisionResult{
		RequestID: req.ID,
		Kind:      req.Kind,
		Decision:  in.Decision,
	}

	err = o.commit(ctx, req, in, target)
	switch {
	case err == nil:
		res.Committed = true
	case errors.Is(err, apperr.ErrConflictAlreadyDecided) && in.Retry:
		current, findErr := o.Approvals.FindByID(ctx, in.RequestID)
		if findErr != nil {
			return nil, findErr
		}
		if current.Status != target {
			return nil, apperr.ErrConflictAlreadyDecided
		}
		req = current
		res.Resumed = true
		o.auditResume(ctx, req, in.ActorID)
	default:
		return nil, err
	}
	res.Status = req.Status

	log := logging.WithRequest(o.log, req.ID.String())
	o.runSteps(logging.WithContext(ctx, log), req, res)

	if !res.Complete() && o.Scheduler != nil {
		if err := o.Scheduler.ScheduleResume(ctx, req.ID, o.cfg.RetryDelay); err != nil {
			log.Error().Err(err).Msg("failed to schedule resume")
		} else {
			res.RetryScheduled = true
		}
	}

	log.Info().
		Str("decision", string(in.Decision)).
		Bool("committed", res.Committed).
		Bool("resumed", res.Resumed).
		Str("materialize", string(res.Steps.Materialize.Status)).
		Str("mirror", string(res.Steps.Mirror.Status)).
		Str("notify", string(res.Steps.Notify.Status)).
		Msg("decision processed")

	return res, nil
}

func (o *orchestrator) Resume(ctx context.Context, requestID uuid.UUID) (*DecisionResult, error) {
	req, err := o.Approvals.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if !req.IsDecided() {
		return nil, apperr.ErrNotDecided
	}
	decision := DecisionApprove
	if req.Status == model.ApprovalRejected {
		decision = DecisionReject
	}

	return o.Decide(ctx, DecideInput{RequestID: requestID, Decision: decision, Retry: true})
}

// commit is the single serialization point: the status CAS and its audit row share one
// short transaction with no external calls inside.
func (o *orchestrator) commit(ctx context.Context, req *model.ApprovalRequest, in DecideInput, target string) error {
	now := time.Now()
	fields := map[string]interface{}{"decided_at": now}
	if in.ActorID != nil {
		fields["decided_by"] = *in.ActorID
	}
	if target == model.ApprovalRejected {
		fields["rejection_reason"] = in.Reason
	}

	action := model.ActionApproveRequest
	if target == model.ApprovalRejected {
		action = model.ActionRejectRequest
	}

	err := o.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := o.Approvals.Transition(txCtx, req.ID, model.ApprovalPending, target, fields); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]interface{}{
			"kind":   req.Kind,
			"reason": in.Reason,
		})
		return o.Audit.Log(txCtx, &model.AuditLog{
			UserID:     in.ActorID,
			Action:     action,
			EntityID:   req.ID.String(),
			EntityName: req.Kind,
			Details:    string(details),
		})
	})
	if err != nil {
		return err
	}

	req.Status = target
	req.DecidedAt = &now
	req.DecidedBy = in.ActorID
	if target == model.ApprovalRejected {
		req.RejectionReason = in.Reason
	}
	return nil
}

func (o *orchestrator) auditResume(ctx context.Context, req *model.ApprovalRequest, actorID *uuid.UUID) {
	details, _ := json.Marshal(map[string]interface{}{"status": req.Status})
	if err := o.Audit.Log(ctx, &model.AuditLog{
		UserID:     actorID,
		Action:     model.ActionResumeDecision,
		EntityID:   req.ID.String(),
		EntityName: req.Kind,
		Details:    string(details),
	}); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("failed to audit resume")
	}
}

func (o *orchestrator) runSteps(ctx context.Context, req *model.ApprovalRequest, res *DecisionResult) {
	log := logging.FromContext(ctx)

	markers, err := o.Effects.Steps(ctx, req.ID)
	if err != nil {
		// Every step is idempotent, so running without markers only costs repeated work.
		log.Warn().Err(err).Msg("failed to load step markers")
		markers = map[string]model.EffectStep{}
	}
	done := func(step string) bool { return markers[step].Status == model.StepDone }

	if req.Status == model.ApprovalRejected {
		res.Steps.Materialize = StepResult{Status: StepSkipped}
		res.Steps.Mirror = StepResult{Status: StepSkipped}
		if done(model.StepNotify) {
			res.Steps.Notify = StepResult{Status: StepOK}
			return
		}
		channels, err := o.notify(ctx, req)
		res.Channels = channels
		res.Steps.Notify = o.stepResult(ctx, req.ID, model.StepNotify, err)
		return
	}

	artifactRef := markers[model.StepMaterialize].ArtifactRef
	if done(model.StepMaterialize) {
		res.Steps.Materialize = StepResult{Status: StepOK}
	} else {
		ref, err := o.materialize(ctx, req)
		res.Steps.Materialize = o.stepResult(ctx, req.ID, model.StepMaterialize, err)
		artifactRef = ref
	}
	if res.Steps.Materialize.Status != StepOK {
		res.Steps.Mirror = StepResult{Status: StepPending}
		res.Steps.Notify = StepResult{Status: StepPending}
		return
	}

	// Mirror and notify do not read each other's output.
	var wg sync.WaitGroup
	if done(model.StepMirror) {
		res.Steps.Mirror = StepResult{Status: StepOK}
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := o.mirror(ctx, req, artifactRef)
			res.Steps.Mirror = o.stepResult(ctx, req.ID, model.StepMirror, err)
		}()
	}
	if done(model.StepNotify) {
		res.Steps.Notify = StepResult{Status: StepOK}
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			channels, err := o.notify(ctx, req)
			res.Channels = channels
			res.Steps.Notify = o.stepResult(ctx, req.ID, model.StepNotify, err)
		}()
	}
	wg.Wait()
}

// stepResult converts a step error into a result and records a FAILED marker. DONE markers
// are written by the steps themselves.
func (o *orchestrator) stepResult(ctx context.Context, requestID uuid.UUID, step string, err error) StepResult {
	if err == nil {
		return StepResult{Status: StepOK}
	}

	failure := apperr.NewStepFailure(strings.ToLower(step), err)
	logging.FromContext(ctx).Warn().Err(err).Str("step", step).Bool("timeout", failure.Timeout).Msg("step failed")

	if markErr := o.Effects.MarkFailed(context.WithoutCancel(ctx), requestID, step, err.Error()); markErr != nil {
		logging.FromContext(ctx).Error().Err(markErr).Str("step", step).Msg("failed to record step failure")
	}
	return StepResult{Status: StepFailed, Error: failure.Error(), Timeout: failure.Timeout, Err: failure}
}

// materialize grants the role or promotes the catalog entry. The artifact and the DONE
// marker are written in one transaction, and both writes are keyed by the request id.
func (o *orchestrator) materialize(ctx context.Context, req *model.ApprovalRequest) (ref string, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.materialize", attribute.String("kind", req.Kind))
	defer func() { tracing.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaterializeTimeout)
	defer cancel()

	err = o.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		switch req.Kind {
		case model.RequestKindSupplier, model.RequestKindBuyer:
			ref, err = o.grantRole(txCtx, req)
		case model.RequestKindProduct:
			ref, err = o.promoteCatalogEntry(txCtx, req)
		default:
			err = fmt.Errorf("unknown request kind %q", req.Kind)
		}
		if err != nil {
			return err
		}
		return o.Effects.MarkDone(txCtx, req.ID, model.StepMaterialize, ref)
	})
	return ref, err
}

func (o *orchestrator) grantRole(ctx context.Context, req *model.ApprovalRequest) (string, error) {
	role := model.RoleSupplier
	if req.Kind == model.RequestKindBuyer {
		role = model.RoleBuyer
	}

	grant, err := o.Roles.GrantRole(ctx, req.SubmitterRef, role, req.ID)
	if errors.Is(err, apperr.ErrAlreadyGranted) {
		return grant.ID.String(), nil
	}
	if err != nil {
		return "", fmt.Errorf("grant role %s: %w", role, err)
	}

	details, _ := json.Marshal(map[string]interface{}{"account_id": req.SubmitterRef, "role": role})
	if err := o.Audit.Log(ctx, &model.AuditLog{
		Action:     model.ActionGrantRole,
		EntityID:   req.ID.String(),
		EntityName: role,
		Details:    string(details),
	}); err != nil {
		return "", fmt.Errorf("failed to write audit log: %w", err)
	}
	return grant.ID.String(), nil
}

func (o *orchestrator) promoteCatalogEntry(ctx context.Context, req *model.ApprovalRequest) (string, error) {
	exists, err := o.Catalog.ExistsForRequest(ctx, req.ID)
	if err != nil {
		return "", fmt.Errorf("check catalog entry: %w", err)
	}
	if exists {
		entry, err := o.Catalog.FindByRequest(ctx, req.ID)
		if err != nil {
			return "", fmt.Errorf("load catalog entry: %w", err)
		}
		return entry.ID.String(), nil
	}

	var payload model.ProductPayload
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return "", fmt.Errorf("decode product payload: %w", err)
	}
	images, _ := json.Marshal(payload.Images)

	entry := model.CatalogEntry{
		SourceRequestID:  req.ID,
		SupplierRef:      req.SubmitterRef,
		Name:             payload.Name,
		Category:         payload.Category,
		Description:      payload.Description,
		Specifications:   payload.Specifications,
		Price:            payload.Price,
		MinOrderQuantity: payload.MinOrderQuantity,
		Images:           string(images),
		IsActive:         true,
	}
	if err := o.Catalog.Insert(ctx, &entry); err != nil {
		return "", fmt.Errorf("insert catalog entry: %w", err)
	}

	details, _ := json.Marshal(map[string]interface{}{"catalog_entry_id": entry.ID, "name": entry.Name})
	if err := o.Audit.Log(ctx, &model.AuditLog{
		Action:     model.ActionPromoteCatalog,
		EntityID:   req.ID.String(),
		EntityName: entry.Name,
		Details:    string(details),
	}); err != nil {
		return "", fmt.Errorf("failed to write audit log: %w", err)
	}
	return entry.ID.String(), nil
}

func (o *orchestrator) mirror(ctx context.Context, req *model.ApprovalRequest, artifactRef string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.mirror", attribute.String("kind", req.Kind))
	defer func() { tracing.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.MirrorTimeout)
	defer cancel()

	row, err := mirrorRow(req, artifactRef)
	if err != nil {
		return err
	}
	if err := o.Mirror.UpsertRow(ctx, sheetByKind[req.Kind], mirrorKeyField, row); err != nil {
		return err
	}
	return o.Effects.MarkDone(ctx, req.ID, model.StepMirror, sheetByKind[req.Kind])
}

// notify dispatches the decision event, skipping channels that already delivered it.
// The step succeeds only when no channel failed.
func (o *orchestrator) notify(ctx context.Context, req *model.ApprovalRequest) (results []notify.ChannelResult, err error) {
	event := EventType(req.Kind, req.Status)
	ctx, span := tracing.StartSpan(ctx, "approval.notify", attribute.String("event", event))
	defer func() { tracing.EndSpan(span, err) }()

	if o.Notifier == nil {
		return nil, o.Effects.MarkDone(ctx, req.ID, model.StepNotify, "")
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.NotifyTimeout)
	defer cancel()

	data, err := o.notificationData(ctx, req)
	if err != nil {
		return nil, err
	}

	sent, err := o.Notifications.SentChannels(ctx, req.ID, event)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("failed to load delivered channels")
		sent = nil
	}

	// Each delivery is claimed before sending. A claim older than twice the step timeout
	// belongs to a notify step that died.
	staleBefore := time.Now().Add(-2 * o.cfg.NotifyTimeout)
	skip := append([]string(nil), sent...)
	inFlight := make(map[string]bool)
	for _, ch := range o.Notifier.Channels(event) {
		if slices.Contains(sent, ch) {
			continue
		}
		claimed, err := o.Notifications.Claim(ctx, req.ID, event, ch, staleBefore)
		if err != nil {
			return nil, fmt.Errorf("claim %s delivery: %w", ch, err)
		}
		if !claimed {
			inFlight[ch] = true
			skip = append(skip, ch)
		}
	}

	results = o.Notifier.Dispatch(ctx, event, data, notify.SkipChannels(skip...))

	var failures []error
	recordCtx := context.WithoutCancel(ctx)
	for _, r := range results {
		if r.Status == notify.StatusSkipped {
			if inFlight[r.Channel] {
				failures = append(failures, fmt.Errorf("%s: %w", r.Channel, errDeliveryInFlight))
			}
			continue
		}
		if err := o.Notifications.Record(recordCtx, req.ID, event, r.Channel, r.Err); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("channel", r.Channel).Msg("failed to record delivery")
		}
		if r.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", r.Channel, r.Err))
		}
	}
	if len(failures) > 0 {
		return results, fmt.Errorf("%d channel(s) failed: %w", len(failures), errors.Join(failures...))
	}

	return results, o.Effects.MarkDone(recordCtx, req.ID, model.StepNotify, strconv.Itoa(len(results)))
}

// EventType names the notification event for a decided request, e.g. "supplier_approved".
func EventType(kind, status string) string {
	return strings.ToLower(kind) + "_" + strings.ToLower(status)
}

var errDeliveryInFlight = errors.New("delivery in flight in another notify step")

func (o *orchestrator) notificationData(ctx context.Context, req *model.ApprovalRequest) (map[string]string, error) {
	data := map[string]string{
		"request_id":       req.ID.String(),
		"kind":             req.Kind,
		"decision":         req.Status,
		"submitter_ref":    req.SubmitterRef.String(),
		"rejection_reason": req.RejectionReason,
	}

	if req.IsRegistration() {
		var p model.RegistrationPayload
		if err := json.Unmarshal([]byte(req.Payload), &p); err != nil {
			return nil, fmt.Errorf("decode registration payload: %w", err)
		}
		data["company_name"] = p.CompanyName
		data["contact_person"] = p.ContactPerson
		data["email"] = p.Email
		return data, nil
	}

	var p model.ProductPayload
	if err := json.Unmarshal([]byte(req.Payload), &p); err != nil {
		return nil, fmt.Errorf("decode product payload: %w", err)
	}
	data["product_name"] = p.Name
	data["category"] = p.Category
	data["price"] = p.Price.StringFixed(2)
	data["min_order_quantity"] = strconv.Itoa(p.MinOrderQuantity)
	data["supplier_ref"] = req.SubmitterRef.String()
	data["supplier_name"] = o.supplierName(ctx, req.SubmitterRef)
	return data, nil
}

// supplierName is the company name of the submitter's approved supplier registration,
// or the account id when there is none.
func (o *orchestrator) supplierName(ctx context.Context, submitterRef uuid.UUID) string {
	reg, err := o.Approvals.FindApprovedRegistration(ctx, model.RequestKindSupplier, submitterRef)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			logging.FromContext(ctx).Warn().Err(err).Msg("failed to look up supplier registration")
		}
		return submitterRef.String()
	}

	var p model.RegistrationPayload
	if err := json.Unmarshal([]byte(reg.Payload), &p); err != nil || p.CompanyName == "" {
		return submitterRef.String()
	}
	return p.CompanyName
}

func mirrorRow(req *model.ApprovalRequest, artifactRef string) (mirror.Row, error) {
	decidedAt := ""
	if req.DecidedAt != nil {
		decidedAt = req.DecidedAt.UTC().Format(time.RFC3339)
	}

	row := mirror.Row{
		{Key: mirrorKeyField, Value: req.ID.String()},
		{Key: "submitter_ref", Value: req.SubmitterRef.String()},
	}

	if req.IsRegistration() {
		var p model.RegistrationPayload
		if err := json.Unmarshal([]byte(req.Payload), &p); err != nil {
			return nil, fmt.Errorf("decode registration payload: %w", err)
		}
		row = append(row,
			mirror.Cell{Key: "company_name", Value: p.CompanyName},
			mirror.Cell{Key: "contact_person", Value: p.ContactPerson},
			mirror.Cell{Key: "email", Value: p.Email},
			mirror.Cell{Key: "phone", Value: p.Phone},
			mirror.Cell{Key: "tax_id", Value: p.TaxID},
			mirror.Cell{Key: "business_type", Value: p.BusinessType},
			mirror.Cell{Key: "address", Value: p.Address},
			mirror.Cell{Key: "city", Value: p.City},
			mirror.Cell{Key: "state", Value: p.State},
			mirror.Cell{Key: "pincode", Value: p.Pincode},
			mirror.Cell{Key: "validation_status", Value: req.ValidationStatus},
			mirror.Cell{Key: "role_grant_id", Value: artifactRef},
		)
	} else {
		var p model.ProductPayload
		if err := json.Unmarshal([]byte(req.Payload), &p); err != nil {
			return nil, fmt.Errorf("decode product payload: %w", err)
		}
		row = append(row,
			mirror.Cell{Key: "name", Value: p.Name},
			mirror.Cell{Key: "category", Value: p.Category},
			mirror.Cell{Key: "price", Value: p.Price.StringFixed(2)},
			mirror.Cell{Key: "min_order_quantity", Value: strconv.Itoa(p.MinOrderQuantity)},
			mirror.Cell{Key: "catalog_entry_id", Value: artifactRef},
		)
	}

	return append(row,
		mirror.Cell{Key: "status", Value: req.Status},
		mirror.Cell{Key: "decided_at", Value: decidedAt},
	), nil
}
