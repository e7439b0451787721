package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
	"github.com/noah-isme/internship-approval-api/internal/observability"
	"github.com/noah-isme/internship-approval-api/internal/repository"
)

// TransitionRequest asks the status machine to move one application to Target.
type TransitionRequest struct {
	ApplicationID   uint
	Target          models.ApplicationStatus
	Actor           uint
	ExpectedVersion int64
	Reason          *string
	Metadata        map[string]interface{}

	// committeeDecision marks transitions driven by the vote aggregator, the only path
	// allowed to move advisor_approved -> committee_approved.
	committeeDecision bool
}

// TransitionResult is the committed application together with its audit row.
type TransitionResult struct {
	Application models.InternshipApplication
	AuditEntry  models.StatusTransition
}

// StatusMachine validates and applies single status transitions.
type StatusMachine interface {
	ApplyTransition(ctx context.Context, req TransitionRequest) (TransitionResult, error)
}

// TransitionPublisher receives committed transitions. It is called after commit, so
// implementations must not fail the caller and should bound any network I/O.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, transition models.StatusTransition)
}

type statusMachine struct {
	store     repository.Store
	audit     AuditTrail
	publisher TransitionPublisher
	now       func() time.Time
}

// NewStatusMachine constructs the status machine. publisher may be nil.
func NewStatusMachine(store repository.Store, audit AuditTrail, publisher TransitionPublisher) StatusMachine {
	return newStatusMachine(store, audit, publisher)
}

func newStatusMachine(store repository.Store, audit AuditTrail, publisher TransitionPublisher) *statusMachine {
	if audit == nil {
		audit = NewAuditTrail(store)
	}
	return &statusMachine{
		store:     store,
		audit:     audit,
		publisher: publisher,
		now:       time.Now,
	}
}

func (m *statusMachine) ApplyTransition(ctx context.Context, req TransitionRequest) (TransitionResult, error) {
	tracer := otel.Tracer("github.com/noah-isme/internship-approval-api/internal/service/status_machine")
	ctx, span := tracer.Start(ctx, "status.apply_transition")
	span.SetAttributes(
		attribute.Int64("application.id", int64(req.ApplicationID)),
		attribute.String("transition.target", string(req.Target)),
		attribute.Int64("transition.expected_version", req.ExpectedVersion),
		attribute.Int64("transition.actor_id", int64(req.Actor)),
	)
	defer span.End()

	var result TransitionResult
	err := m.store.Transaction(ctx, func(tx repository.Store) error {
		applied, err := m.applyWithin(ctx, tx, req)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, transitionFailureLabel(err))
		return TransitionResult{}, err
	}

	m.committed(ctx, result.AuditEntry)
	span.SetAttributes(attribute.Int64("transition.new_version", result.Application.StatusVersion))

	return result, nil
}

// applyWithin performs the transition using tx. The caller owns commit and must call
// committed once the surrounding transaction succeeds.
func (m *statusMachine) applyWithin(ctx context.Context, tx repository.Store, req TransitionRequest) (TransitionResult, error) {
	application, err := tx.Applications().GetByID(ctx, req.ApplicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TransitionResult{}, ErrApplicationNotFound
		}
		return TransitionResult{}, err
	}

	from := application.Status
	if !models.CanTransition(from, req.Target) {
		return TransitionResult{}, &InvalidTransitionError{From: from, To: req.Target}
	}
	if from == models.StatusAdvisorApproved && req.Target == models.StatusCommitteeApproved && !req.committeeDecision {
		return TransitionResult{}, &InvalidTransitionError{From: from, To: req.Target}
	}

	if application.StatusVersion != req.ExpectedVersion {
		return TransitionResult{}, &ConcurrentModificationError{
			ApplicationID: application.ID,
			Expected:      req.ExpectedVersion,
			Actual:        application.StatusVersion,
		}
	}

	changedAt := m.now().UTC()
	change := repository.StatusChange{
		ApplicationID:       application.ID,
		ExpectedVersion:     req.ExpectedVersion,
		From:                from,
		To:                  req.Target,
		ChangedAt:           changedAt,
		MarkAdvisorApproval: req.Target == models.StatusAdvisorApproved,
	}
	if outcome, ok := req.Target.Outcome(); ok {
		change.FinalOutcome = &outcome
	}

	swapped, err := tx.Applications().CompareAndSetStatus(ctx, change)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("update application status: %w", err)
	}
	if !swapped {
		actual := req.ExpectedVersion
		if current, err := tx.Applications().GetByID(ctx, application.ID); err == nil {
			actual = current.StatusVersion
		}
		return TransitionResult{}, &ConcurrentModificationError{
			ApplicationID: application.ID,
			Expected:      req.ExpectedVersion,
			Actual:        actual,
		}
	}

	entry, err := m.audit.Append(ctx, tx, AuditEntry{
		ApplicationID: application.ID,
		From:          from,
		To:            req.Target,
		ChangedBy:     req.Actor,
		ChangedAt:     changedAt,
		Reason:        req.Reason,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return TransitionResult{}, err
	}

	updated, err := tx.Applications().GetByID(ctx, application.ID)
	if err != nil {
		return TransitionResult{}, err
	}

	return TransitionResult{Application: updated, AuditEntry: entry}, nil
}

func (m *statusMachine) committed(ctx context.Context, entry models.StatusTransition) {
	observability.StatusTransitions().WithLabelValues(string(entry.FromStatus), string(entry.ToStatus)).Inc()
	if m.publisher != nil {
		m.publisher.PublishTransition(ctx, entry)
	}
}

func transitionFailureLabel(err error) string {
	switch {
	case errors.Is(err, ErrApplicationNotFound):
		return "application_not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	default:
		return "transition_failed"
	}
}
