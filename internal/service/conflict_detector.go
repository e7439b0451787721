package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
	"github.com/noah-isme/internship-approval-api/internal/observability"
	"github.com/noah-isme/internship-approval-api/internal/repository"
)

// ConflictOutcome is either Clean or Conflict.
type ConflictOutcome interface {
	conflictOutcome()
}

// Clean means the caller's observation still matches storage.
type Clean struct {
	ApplicationID  uint
	CurrentVersion int64
}

// Conflict describes how the stored application drifted from what the caller saw.
type Conflict struct {
	ApplicationID         uint
	CurrentStatus         models.ApplicationStatus
	ClientObservedStatus  models.ApplicationStatus
	CurrentVersion        int64
	ClientObservedVersion int64
	// LastModifiedBy is zero when the application has never transitioned.
	LastModifiedBy uint
	LastModifiedAt time.Time
	CheckedAt      time.Time
}

func (Clean) conflictOutcome()    {}
func (Conflict) conflictOutcome() {}

// ResolutionStrategy is the caller's answer to a detected conflict.
type ResolutionStrategy string

const (
	ResolutionOverwrite ResolutionStrategy = "overwrite"
	ResolutionAbort     ResolutionStrategy = "abort"
)

// Resolution reports what Resolve did.
type Resolution struct {
	Strategy     ResolutionStrategy
	Aborted      bool
	FreshVersion int64
}

// ConflictDetector is the optimistic-concurrency pre-check run before any mutation.
type ConflictDetector interface {
	CheckConflict(ctx context.Context, applicationID uint, observedVersion int64, observedStatus models.ApplicationStatus) (ConflictOutcome, error)
	// Resolve applies the caller's strategy. overwrite calls mutate exactly once with the
	// version read from storage; a second conflict is returned as is.
	Resolve(ctx context.Context, applicationID uint, strategy ResolutionStrategy, mutate func(ctx context.Context, freshVersion int64) error) (Resolution, error)
}

type conflictDetector struct {
	store repository.Store
	audit AuditTrail
	now   func() time.Time
}

// NewConflictDetector constructs the detector. audit defaults to one built on store.
func NewConflictDetector(store repository.Store, audit AuditTrail) ConflictDetector {
	if audit == nil {
		audit = NewAuditTrail(store)
	}
	return &conflictDetector{store: store, audit: audit, now: time.Now}
}

func (d *conflictDetector) CheckConflict(ctx context.Context, applicationID uint, observedVersion int64, observedStatus models.ApplicationStatus) (ConflictOutcome, error) {
	tracer := otel.Tracer("github.com/noah-isme/internship-approval-api/internal/service/conflict_detector")
	ctx, span := tracer.Start(ctx, "conflict.check")
	span.SetAttributes(
		attribute.Int64("application.id", int64(applicationID)),
		attribute.Int64("conflict.observed_version", observedVersion),
	)
	defer span.End()

	application, err := d.load(ctx, applicationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return nil, err
	}

	if application.StatusVersion == observedVersion {
		observability.ConflictChecks().WithLabelValues("clean").Inc()
		span.SetAttributes(attribute.String("conflict.outcome", "clean"))
		return Clean{ApplicationID: application.ID, CurrentVersion: application.StatusVersion}, nil
	}

	conflict := Conflict{
		ApplicationID:         application.ID,
		CurrentStatus:         application.Status,
		ClientObservedStatus:  observedStatus,
		CurrentVersion:        application.StatusVersion,
		ClientObservedVersion: observedVersion,
		LastModifiedAt:        application.UpdatedAt,
		CheckedAt:             d.now().UTC(),
	}

	latest, err := d.audit.Latest(ctx, application.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit_lookup_failed")
		return nil, err
	}
	if latest != nil {
		conflict.LastModifiedBy = latest.ChangedBy
		conflict.LastModifiedAt = latest.ChangedAt
	}

	observability.ConflictChecks().WithLabelValues("conflict").Inc()
	span.SetAttributes(
		attribute.String("conflict.outcome", "conflict"),
		attribute.Int64("conflict.current_version", application.StatusVersion),
	)

	return conflict, nil
}

func (d *conflictDetector) Resolve(ctx context.Context, applicationID uint, strategy ResolutionStrategy, mutate func(ctx context.Context, freshVersion int64) error) (Resolution, error) {
	switch strategy {
	case ResolutionAbort:
		observability.ConflictChecks().WithLabelValues("aborted").Inc()
		return Resolution{Strategy: ResolutionAbort, Aborted: true}, nil
	case ResolutionOverwrite:
	default:
		return Resolution{}, ErrUnknownResolution
	}

	application, err := d.load(ctx, applicationID)
	if err != nil {
		return Resolution{}, err
	}

	resolution := Resolution{Strategy: ResolutionOverwrite, FreshVersion: application.StatusVersion}
	if mutate == nil {
		return resolution, nil
	}

	observability.ConflictChecks().WithLabelValues("overwritten").Inc()
	if err := mutate(ctx, application.StatusVersion); err != nil {
		return resolution, err
	}

	return resolution, nil
}

func (d *conflictDetector) load(ctx context.Context, applicationID uint) (models.InternshipApplication, error) {
	application, err := d.store.Applications().GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.InternshipApplication{}, ErrApplicationNotFound
		}
		return models.InternshipApplication{}, err
	}

	return application, nil
}
