package workflow

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/specdriven/specd/internal/authz"
	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/document"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
	"github.com/specdriven/specd/internal/persist"
)

// transitionsMetadataKey is the workflow metadata key holding the
// transition audit trail.
const transitionsMetadataKey = "transitions"

// Orchestrator owns all workflow state mutations. Every mutation is
// authorization-checked first, serialized per spec, applied to a working
// copy and committed only after a successful persist.
type Orchestrator struct {
	store  *persist.Manager
	docs   document.Store
	auth   authz.Authorizer
	clock  clock.Clock
	logger zerolog.Logger
	locks  *keyedLocks
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAuthorizer sets the authorization policy. Default is AllowAll.
func WithAuthorizer(a authz.Authorizer) Option {
	return func(o *Orchestrator) { o.auth = a }
}

// WithClock sets the time source. Default is the real clock.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates the workflow service on top of a persistence
// manager and a document store.
func NewOrchestrator(store *persist.Manager, docs document.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		docs:   docs,
		auth:   authz.AllowAll{},
		clock:  clock.RealClock{},
		logger: zerolog.Nop(),
		locks:  newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "workflow").Logger()
	return o
}

// TransitionOutcome reports the result of a transition request.
// A request can succeed without moving (the soft needs-revision path),
// in which case Moved is false and Warnings explain why.
type TransitionOutcome struct {
	State    *domain.WorkflowState `json:"state"`
	Moved    bool                  `json:"moved"`
	Warnings []string              `json:"warnings,omitempty"`
}

// slugPattern strips characters that cannot appear in a spec ID.
var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a spec ID from a human name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 64 {
		slug = strings.Trim(slug[:64], "-")
	}
	return slug
}

// CreateWorkflow creates a new spec workflow in the requirements phase.
// The spec ID is derived from the name; creation fails if it already
// exists.
func (o *Orchestrator) CreateWorkflow(ctx context.Context, actor, name string) (*domain.WorkflowState, error) {
	specID := Slugify(name)
	if specID == "" {
		return nil, fmt.Errorf("spec name %w", specderrors.ErrEmptyValue)
	}
	if err := o.auth.Check(ctx, actor, authz.OpCreate, specID); err != nil {
		return nil, err
	}

	unlock := o.locks.acquire(specID)
	defer unlock()

	if o.store.Exists(specID) {
		return nil, fmt.Errorf("spec '%s': %w", specID, specderrors.ErrSpecExists)
	}

	state := domain.NewWorkflowState(specID, o.clock.Now().UTC())
	if err := o.store.Save(ctx, state, true, "workflow created"); err != nil {
		return nil, err
	}

	o.logger.Info().Str("spec_id", specID).Str("actor", actor).Msg("workflow created")
	return state, nil
}

// GetState loads the workflow state for a spec, recovering it if the
// canonical file is corrupt.
func (o *Orchestrator) GetState(ctx context.Context, specID string) (*persist.Result, error) {
	unlock := o.locks.acquire(specID)
	defer unlock()
	return o.store.Load(ctx, specID)
}

// Transition requests a phase change.
//
// A review decision may ride the request: when approval is non-empty it
// is recorded on the source phase before the gate is evaluated, so
// approve-and-advance is a single call.
//
// Forward transitions are gated twice: the source phase must be approved
// and must have a non-empty document. A forward request without approval
// does not fail; it marks the phase needs_revision, moves the workflow
// into review and reports the block as a warning. Backward transitions
// are unconditional and reset the approvals of every phase from the
// destination onward. The lateral execution self-edge is recorded in the
// audit trail without creating a version snapshot.
func (o *Orchestrator) Transition(ctx context.Context, actor, specID string, target constants.Phase, approval constants.ApprovalStatus, feedback string) (*TransitionOutcome, error) {
	if err := o.auth.Check(ctx, actor, authz.OpTransition, specID); err != nil {
		return nil, err
	}
	switch approval {
	case "", constants.ApprovalApproved, constants.ApprovalRejected, constants.ApprovalNeedsRevision:
	default:
		return nil, fmt.Errorf("%w: %q is not a review decision", specderrors.ErrInvalidStatus, approval)
	}

	unlock := o.locks.acquire(specID)
	defer unlock()

	result, err := o.store.Load(ctx, specID)
	if err != nil {
		return nil, err
	}

	kind, err := ClassifyTransition(result.State.CurrentPhase, target)
	if err != nil {
		return nil, err
	}

	state := result.State.Clone()
	now := o.clock.Now().UTC()

	if approval != "" {
		state.Approvals[state.CurrentPhase] = approval
	}

	switch kind {
	case TransitionForward:
		if state.Approvals[state.CurrentPhase] != constants.ApprovalApproved {
			return o.demandRevision(ctx, state, result.Warnings, now)
		}
		if err := o.requireDocument(ctx, state.SpecID, state.CurrentPhase); err != nil {
			return nil, err
		}
	case TransitionBackward, TransitionLateral:
		// No gates.
	}

	from := state.CurrentPhase
	state.CurrentPhase = target
	state.UpdatedAt = now
	appendTransition(state, domain.TransitionRecord{
		FromPhase: from,
		ToPhase:   target,
		Timestamp: now,
		Actor:     actor,
		Feedback:  feedback,
	})

	switch kind {
	case TransitionForward:
		if target == constants.PhaseExecution {
			state.Status = constants.WorkflowStatusInProgress
		} else {
			state.Status = constants.WorkflowStatusDraft
		}
	case TransitionBackward:
		// Returning for rework invalidates downstream approvals.
		for _, phase := range constants.OrderedPhases() {
			if constants.PhaseIndex(phase) >= constants.PhaseIndex(target) {
				state.Approvals[phase] = constants.ApprovalPending
			}
		}
		state.Status = constants.WorkflowStatusDraft
	case TransitionLateral:
		// Status unchanged.
	}

	createVersion := kind != TransitionLateral
	if err := o.store.Save(ctx, state, createVersion, fmt.Sprintf("transition %s -> %s", from, target)); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("spec_id", specID).
		Str("actor", actor).
		Str("from", from.String()).
		Str("to", target.String()).
		Msg("phase transition")

	return &TransitionOutcome{State: state, Moved: true, Warnings: result.Warnings}, nil
}

// demandRevision handles a forward request whose source phase is not
// approved. The phase is marked needs_revision and the workflow enters
// review; no transition record is written because no movement happened.
// An explicit rejection riding the request is kept as is.
func (o *Orchestrator) demandRevision(ctx context.Context, state *domain.WorkflowState, warnings []string, now time.Time) (*TransitionOutcome, error) {
	if state.Approvals[state.CurrentPhase] != constants.ApprovalRejected {
		state.Approvals[state.CurrentPhase] = constants.ApprovalNeedsRevision
	}
	state.Status = constants.WorkflowStatusInReview
	state.UpdatedAt = now

	if err := o.store.Save(ctx, state, false, ""); err != nil {
		return nil, err
	}

	warning := fmt.Sprintf("%s phase is not approved; it was marked needs_revision and the workflow stays in %s",
		state.CurrentPhase, state.CurrentPhase)
	o.logger.Info().Str("spec_id", state.SpecID).Str("phase", state.CurrentPhase.String()).
		Msg("forward transition blocked pending approval")

	return &TransitionOutcome{
		State:    state,
		Moved:    false,
		Warnings: append(warnings, warning),
	}, nil
}

// requireDocument checks that the phase's document exists and is not
// blank before a forward transition.
func (o *Orchestrator) requireDocument(ctx context.Context, specID string, phase constants.Phase) error {
	docType, ok := constants.RequiredDocument(phase)
	if !ok {
		return nil
	}
	content, _, err := o.docs.Load(ctx, specID, docType)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%s for spec '%s': %w", docType, specID, specderrors.ErrDocumentEmpty)
	}
	return nil
}

// ApprovePhase records a review decision for a phase. Only approved,
// rejected and needs_revision are acceptable decisions.
func (o *Orchestrator) ApprovePhase(ctx context.Context, actor, specID string, phase constants.Phase, decision constants.ApprovalStatus, feedback string) (*domain.WorkflowState, error) {
	if err := o.auth.Check(ctx, actor, authz.OpApprove, specID); err != nil {
		return nil, err
	}
	if !phase.IsValid() {
		return nil, fmt.Errorf("%w: %q", specderrors.ErrInvalidPhase, phase)
	}
	switch decision {
	case constants.ApprovalApproved, constants.ApprovalRejected, constants.ApprovalNeedsRevision:
	default:
		return nil, fmt.Errorf("%w: %q is not a review decision", specderrors.ErrInvalidStatus, decision)
	}

	unlock := o.locks.acquire(specID)
	defer unlock()

	result, err := o.store.Load(ctx, specID)
	if err != nil {
		return nil, err
	}

	state := result.State.Clone()
	state.Approvals[phase] = decision
	state.UpdatedAt = o.clock.Now().UTC()

	// A decision on the current phase drives the workflow status; a
	// decision on another phase only records the gate.
	if phase == state.CurrentPhase {
		switch decision {
		case constants.ApprovalApproved:
			state.Status = constants.WorkflowStatusApproved
		case constants.ApprovalRejected, constants.ApprovalNeedsRevision:
			state.Status = constants.WorkflowStatusInReview
		}
	}

	description := fmt.Sprintf("%s phase %s by %s", phase, decision, actor)
	if err := o.store.Save(ctx, state, true, description); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("spec_id", specID).
		Str("actor", actor).
		Str("phase", phase.String()).
		Str("decision", decision.String()).
		Str("feedback", feedback).
		Msg("phase reviewed")
	return state, nil
}

// SetExecutionStatus updates the workflow status from the task engine
// (in_progress while tasks run, completed when the last task finishes,
// error when execution is abandoned). Only execution-related statuses
// are accepted.
func (o *Orchestrator) SetExecutionStatus(ctx context.Context, specID string, status constants.WorkflowStatus) error {
	switch status {
	case constants.WorkflowStatusInProgress, constants.WorkflowStatusCompleted, constants.WorkflowStatusError:
	default:
		return fmt.Errorf("%w: %q is not an execution status", specderrors.ErrInvalidStatus, status)
	}

	unlock := o.locks.acquire(specID)
	defer unlock()

	result, err := o.store.Load(ctx, specID)
	if err != nil {
		return err
	}

	state := result.State.Clone()
	if state.Status == status {
		return nil
	}
	state.Status = status
	state.UpdatedAt = o.clock.Now().UTC()

	createVersion := status == constants.WorkflowStatusCompleted
	return o.store.Save(ctx, state, createVersion, "execution status "+status.String())
}

// ListWorkflows returns a summary of every known workflow, most recently
// updated first.
func (o *Orchestrator) ListWorkflows(ctx context.Context) ([]domain.WorkflowSummary, error) {
	ids, err := o.store.ListSpecIDs(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.WorkflowSummary, 0, len(ids))
	for _, specID := range ids {
		result, err := o.GetState(ctx, specID)
		if err != nil {
			o.logger.Warn().Err(err).Str("spec_id", specID).Msg("skipping unlistable workflow")
			continue
		}
		summaries = append(summaries, domain.WorkflowSummary{
			SpecID:       result.State.SpecID,
			CurrentPhase: result.State.CurrentPhase,
			Status:       result.State.Status,
			UpdatedAt:    result.State.UpdatedAt,
			Recovered:    result.Recovered || result.State.Recovered(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// ListVersions returns the version history for a spec, newest first.
func (o *Orchestrator) ListVersions(ctx context.Context, specID string) ([]domain.VersionInfo, error) {
	return o.store.ListVersions(ctx, specID)
}

// RestoreVersion replaces the current state with a version snapshot.
func (o *Orchestrator) RestoreVersion(ctx context.Context, actor, specID, versionID string) (*domain.WorkflowState, error) {
	if err := o.auth.Check(ctx, actor, authz.OpRestore, specID); err != nil {
		return nil, err
	}

	unlock := o.locks.acquire(specID)
	defer unlock()
	return o.store.RestoreVersion(ctx, specID, versionID)
}

// appendTransition appends a record to the audit trail in metadata.
// Records are stored as maps so they survive a JSON round trip
// unchanged.
func appendTransition(state *domain.WorkflowState, record domain.TransitionRecord) {
	if state.Metadata == nil {
		state.Metadata = make(map[string]any)
	}
	entry := map[string]any{
		"from_phase": record.FromPhase.String(),
		"to_phase":   record.ToPhase.String(),
		"timestamp":  record.Timestamp.Format(time.RFC3339Nano),
		"actor":      record.Actor,
	}
	if record.Feedback != "" {
		entry["feedback"] = record.Feedback
	}

	existing, _ := state.Metadata[transitionsMetadataKey].([]any)
	state.Metadata[transitionsMetadataKey] = append(existing, entry)
}

// TransitionHistory decodes the audit trail from workflow metadata.
// Entries that do not look like transition records are skipped.
func TransitionHistory(state *domain.WorkflowState) []domain.TransitionRecord {
	if state.Metadata == nil {
		return nil
	}
	raw, _ := state.Metadata[transitionsMetadataKey].([]any)
	records := make([]domain.TransitionRecord, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		record := domain.TransitionRecord{
			FromPhase: constants.Phase(stringField(entry, "from_phase")),
			ToPhase:   constants.Phase(stringField(entry, "to_phase")),
			Actor:     stringField(entry, "actor"),
			Feedback:  stringField(entry, "feedback"),
		}
		if ts, err := time.Parse(time.RFC3339Nano, stringField(entry, "timestamp")); err == nil {
			record.Timestamp = ts
		}
		records = append(records, record)
	}
	return records
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
