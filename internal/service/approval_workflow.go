package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/dto"
	"github.com/noah-isme/internship-approval-api/internal/models"
	"github.com/noah-isme/internship-approval-api/internal/repository"
)

const (
	defaultApplicationPageSize = 20
	defaultStalledAfter        = 7 * 24 * time.Hour
	roleAdmin                  = "admin"
	roleStudent                = "student"
)

// ErrObservedVersionRequired indicates a guarded score batch without an observed version.
var ErrObservedVersionRequired = errors.New("observed_version is required when application_id is set")

// Actor identifies the authenticated user behind a request.
type Actor struct {
	ID   uint
	Role string
}

// ApprovalWorkflow is the entry point used by HTTP handlers. It runs the conflict pre-check
// before any mutation and shapes core results into response DTOs.
type ApprovalWorkflow interface {
	Register(ctx context.Context, actor Actor, payload dto.RegisterApplicationRequest) (dto.ApplicationResponse, error)
	List(ctx context.Context, query dto.ApplicationListQuery) (dto.ApplicationListResponse, error)
	Status(ctx context.Context, applicationID uint) (dto.ApprovalStatusResponse, error)
	History(ctx context.Context, applicationID uint) ([]dto.StatusTransitionResponse, error)
	CheckConflict(ctx context.Context, applicationID uint, payload dto.ConflictCheckRequest) (dto.ConflictResponse, error)
	Transition(ctx context.Context, applicationID uint, actor Actor, payload dto.ApplyTransitionRequest) (dto.TransitionResponse, error)
	AdvisorReview(ctx context.Context, applicationID uint, actor Actor, payload dto.AdvisorReviewRequest) (dto.TransitionResponse, error)
	Votes(ctx context.Context, applicationID uint) (dto.VotingSnapshotResponse, error)
	SubmitVote(ctx context.Context, applicationID uint, actor Actor, payload dto.SubmitVoteRequest) (dto.VotingSnapshotResponse, error)
	ScoreBatch(ctx context.Context, payload dto.ScoreBatchRequest) (dto.ScoreBatchResponse, error)
}

// WorkflowConfig tunes the approval workflow.
type WorkflowConfig struct {
	StalledAfter time.Duration
}

// WorkflowDeps groups the core components the workflow orchestrates.
type WorkflowDeps struct {
	Store     repository.Store
	Machine   StatusMachine
	Votes     VoteAggregator
	Detector  ConflictDetector
	Scores    BulkScoreUpdater
	Audit     AuditTrail
	Sanitizer *TextSanitizer
	Validator *validator.Validate
}

type approvalWorkflow struct {
	store        repository.Store
	machine      StatusMachine
	votes        VoteAggregator
	detector     ConflictDetector
	scores       BulkScoreUpdater
	audit        AuditTrail
	sanitizer    *TextSanitizer
	validator    *validator.Validate
	stalledAfter time.Duration
	now          func() time.Time
}

// NewApprovalWorkflow constructs the workflow facade.
func NewApprovalWorkflow(deps WorkflowDeps, cfg WorkflowConfig) ApprovalWorkflow {
	stalledAfter := cfg.StalledAfter
	if stalledAfter <= 0 {
		stalledAfter = defaultStalledAfter
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = NewTextSanitizer()
	}
	validate := deps.Validator
	if validate == nil {
		validate = validator.New()
	}

	return &approvalWorkflow{
		store:        deps.Store,
		machine:      deps.Machine,
		votes:        deps.Votes,
		detector:     deps.Detector,
		scores:       deps.Scores,
		audit:        deps.Audit,
		sanitizer:    sanitizer,
		validator:    validate,
		stalledAfter: stalledAfter,
		now:          time.Now,
	}
}

// Register creates a registered application. Students always register for themselves.
func (w *approvalWorkflow) Register(ctx context.Context, actor Actor, payload dto.RegisterApplicationRequest) (dto.ApplicationResponse, error) {
	if actor.Role == roleStudent {
		payload.StudentID = actor.ID
	}
	if err := w.validator.Struct(payload); err != nil {
		return dto.ApplicationResponse{}, err
	}

	application := models.InternshipApplication{
		StudentID:       payload.StudentID,
		AdvisorID:       payload.AdvisorID,
		CourseSectionID: payload.CourseSectionID,
		Status:          models.StatusRegistered,
		StatusVersion:   0,
	}
	if err := w.store.Applications().Create(ctx, &application); err != nil {
		return dto.ApplicationResponse{}, err
	}

	return dto.NewApplicationResponse(application), nil
}

func (w *approvalWorkflow) List(ctx context.Context, query dto.ApplicationListQuery) (dto.ApplicationListResponse, error) {
	if err := w.validator.Struct(query); err != nil {
		return dto.ApplicationListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultApplicationPageSize
	}

	items, total, err := w.store.Applications().List(ctx, repository.ApplicationFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   models.ApplicationStatus(query.Status),
	})
	if err != nil {
		return dto.ApplicationListResponse{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	return dto.ApplicationListResponse{
		Items: dto.NewApplicationResponseSlice(items),
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

func (w *approvalWorkflow) Status(ctx context.Context, applicationID uint) (dto.ApprovalStatusResponse, error) {
	application, err := w.load(ctx, applicationID)
	if err != nil {
		return dto.ApprovalStatusResponse{}, err
	}

	snapshot, err := w.votes.Snapshot(ctx, applicationID)
	if err != nil {
		return dto.ApprovalStatusResponse{}, err
	}

	history, err := w.audit.History(ctx, applicationID)
	if err != nil {
		return dto.ApprovalStatusResponse{}, err
	}

	lastChange := application.CreatedAt
	if len(history) > 0 {
		lastChange = history[len(history)-1].ChangedAt
	}

	return dto.ApprovalStatusResponse{
		Application:           dto.NewApplicationResponse(application),
		StatusText:            application.Status.DisplayText(),
		Votes:                 dto.NewCommitteeVoteResponseSlice(snapshot.CurrentVotes),
		ApprovalPercentage:    snapshot.ApprovalPercentage,
		TotalCommitteeMembers: snapshot.TotalCommitteeMembers,
		VotingComplete:        snapshot.VotingComplete,
		FinalDecision:         decisionString(snapshot.FinalDecision),
		History:               dto.NewStatusTransitionResponseSlice(history),
		AdvisorApprovalDate:   application.AdvisorApprovalDate,
		NeedsAttention:        w.needsAttention(application.Status, lastChange),
	}, nil
}

// needsAttention flags applications parked in an intermediate status for too long.
func (w *approvalWorkflow) needsAttention(status models.ApplicationStatus, lastChange time.Time) bool {
	switch status {
	case models.StatusAdvisorApproved, models.StatusCommitteeApproved:
		return w.now().Sub(lastChange) > w.stalledAfter
	default:
		return false
	}
}

func (w *approvalWorkflow) History(ctx context.Context, applicationID uint) ([]dto.StatusTransitionResponse, error) {
	history, err := w.audit.History(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	return dto.NewStatusTransitionResponseSlice(history), nil
}

func (w *approvalWorkflow) CheckConflict(ctx context.Context, applicationID uint, payload dto.ConflictCheckRequest) (dto.ConflictResponse, error) {
	if err := w.validator.Struct(payload); err != nil {
		return dto.ConflictResponse{}, err
	}

	outcome, err := w.detector.CheckConflict(ctx, applicationID, *payload.ObservedVersion, models.ApplicationStatus(payload.ObservedStatus))
	if err != nil {
		return dto.ConflictResponse{}, err
	}

	return NewConflictResponse(outcome, *payload.ObservedVersion), nil
}

func (w *approvalWorkflow) Transition(ctx context.Context, applicationID uint, actor Actor, payload dto.ApplyTransitionRequest) (dto.TransitionResponse, error) {
	if err := w.validator.Struct(payload); err != nil {
		return dto.TransitionResponse{}, err
	}

	if actor.Role != roleAdmin {
		application, err := w.load(ctx, applicationID)
		if err != nil {
			return dto.TransitionResponse{}, err
		}
		if !assignedTo(application, actor) {
			return dto.TransitionResponse{}, ErrNotAssignedAdvisor
		}
	}

	request := TransitionRequest{
		ApplicationID:   applicationID,
		Target:          models.ApplicationStatus(payload.TargetStatus),
		Actor:           actor.ID,
		ExpectedVersion: *payload.ExpectedVersion,
		Reason:          w.sanitizer.Clean(payload.Reason),
	}

	return w.guardedTransition(ctx, request, models.ApplicationStatus(payload.ObservedStatus), ResolutionStrategy(payload.OnConflict))
}

func (w *approvalWorkflow) AdvisorReview(ctx context.Context, applicationID uint, actor Actor, payload dto.AdvisorReviewRequest) (dto.TransitionResponse, error) {
	if err := w.validator.Struct(payload); err != nil {
		return dto.TransitionResponse{}, err
	}

	application, err := w.load(ctx, applicationID)
	if err != nil {
		return dto.TransitionResponse{}, err
	}

	if actor.Role != roleAdmin && !assignedTo(application, actor) {
		return dto.TransitionResponse{}, ErrNotAssignedAdvisor
	}

	target := models.StatusDocumentCancelled
	decision := "rejected"
	if *payload.Approved {
		target = models.StatusAdvisorApproved
		decision = "approved"
	}
	if application.Status != models.StatusRegistered {
		return dto.TransitionResponse{}, &InvalidTransitionError{From: application.Status, To: target}
	}

	result, err := w.machine.ApplyTransition(ctx, TransitionRequest{
		ApplicationID:   applicationID,
		Target:          target,
		Actor:           actor.ID,
		ExpectedVersion: *payload.ExpectedVersion,
		Reason:          w.sanitizer.Clean(payload.Remarks),
		Metadata:        map[string]interface{}{"advisor_review": decision},
	})
	if err != nil {
		return dto.TransitionResponse{}, err
	}

	return newTransitionResponse(result, ""), nil
}

func assignedTo(application models.InternshipApplication, actor Actor) bool {
	return application.AdvisorID != nil && *application.AdvisorID == actor.ID
}

func (w *approvalWorkflow) Votes(ctx context.Context, applicationID uint) (dto.VotingSnapshotResponse, error) {
	snapshot, err := w.votes.Snapshot(ctx, applicationID)
	if err != nil {
		return dto.VotingSnapshotResponse{}, err
	}

	return newVotingSnapshotResponse(snapshot), nil
}

func (w *approvalWorkflow) SubmitVote(ctx context.Context, applicationID uint, actor Actor, payload dto.SubmitVoteRequest) (dto.VotingSnapshotResponse, error) {
	if err := w.validator.Struct(payload); err != nil {
		return dto.VotingSnapshotResponse{}, err
	}

	snapshot, err := w.votes.SubmitVote(ctx, VoteRequest{
		ApplicationID: applicationID,
		InstructorID:  actor.ID,
		Vote:          models.VoteValue(payload.Vote),
		Remarks:       w.sanitizer.Clean(payload.Remarks),
	})
	if err != nil {
		return dto.VotingSnapshotResponse{}, err
	}

	return newVotingSnapshotResponse(snapshot), nil
}

func (w *approvalWorkflow) ScoreBatch(ctx context.Context, payload dto.ScoreBatchRequest) (dto.ScoreBatchResponse, error) {
	if err := w.validator.Struct(payload); err != nil {
		return dto.ScoreBatchResponse{}, err
	}

	batch := BatchRequest{
		RecordIDs:     payload.RecordIDs,
		Scores:        payload.Scores,
		SharedComment: w.sanitizer.Clean(payload.SharedComment),
	}
	apply := func(ctx context.Context) (dto.ScoreBatchResponse, error) {
		result, err := w.scores.ApplyBatch(ctx, batch)
		if err != nil {
			return dto.ScoreBatchResponse{}, err
		}
		return dto.ScoreBatchResponse{UpdatedIDs: result.UpdatedIDs, NotFoundIDs: result.NotFoundIDs}, nil
	}

	if payload.ApplicationID == nil {
		return apply(ctx)
	}
	if payload.ObservedVersion == nil {
		return dto.ScoreBatchResponse{}, ErrObservedVersionRequired
	}

	outcome, err := w.detector.CheckConflict(ctx, *payload.ApplicationID, *payload.ObservedVersion, models.ApplicationStatus(payload.ObservedStatus))
	if err != nil {
		return dto.ScoreBatchResponse{}, err
	}

	conflict, ok := outcome.(Conflict)
	if !ok {
		return apply(ctx)
	}
	if payload.OnConflict == "" {
		return dto.ScoreBatchResponse{}, &ConflictError{Conflict: conflict}
	}

	var response dto.ScoreBatchResponse
	resolution, err := w.detector.Resolve(ctx, *payload.ApplicationID, ResolutionStrategy(payload.OnConflict), func(ctx context.Context, _ int64) error {
		applied, err := apply(ctx)
		if err != nil {
			return err
		}
		response = applied
		return nil
	})
	if err != nil {
		return dto.ScoreBatchResponse{}, err
	}
	if resolution.Aborted {
		return dto.ScoreBatchResponse{UpdatedIDs: []uint{}, NotFoundIDs: []uint{}, Aborted: true}, nil
	}

	return response, nil
}

// guardedTransition runs the conflict pre-check and, on conflict, the caller's resolution.
func (w *approvalWorkflow) guardedTransition(ctx context.Context, request TransitionRequest, observedStatus models.ApplicationStatus, strategy ResolutionStrategy) (dto.TransitionResponse, error) {
	outcome, err := w.detector.CheckConflict(ctx, request.ApplicationID, request.ExpectedVersion, observedStatus)
	if err != nil {
		return dto.TransitionResponse{}, err
	}

	conflict, ok := outcome.(Conflict)
	if !ok {
		result, err := w.machine.ApplyTransition(ctx, request)
		if err != nil {
			return dto.TransitionResponse{}, err
		}
		return newTransitionResponse(result, ""), nil
	}

	if strategy == "" {
		return dto.TransitionResponse{}, &ConflictError{Conflict: conflict}
	}

	var result TransitionResult
	resolution, err := w.detector.Resolve(ctx, request.ApplicationID, strategy, func(ctx context.Context, freshVersion int64) error {
		retry := request
		retry.ExpectedVersion = freshVersion
		applied, err := w.machine.ApplyTransition(ctx, retry)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	if err != nil {
		return dto.TransitionResponse{}, err
	}

	if resolution.Aborted {
		application, err := w.load(ctx, request.ApplicationID)
		if err != nil {
			return dto.TransitionResponse{}, err
		}
		return dto.TransitionResponse{
			Application: dto.NewApplicationResponse(application),
			Aborted:     true,
			Resolution:  string(ResolutionAbort),
		}, nil
	}

	return newTransitionResponse(result, string(resolution.Strategy)), nil
}

func (w *approvalWorkflow) load(ctx context.Context, applicationID uint) (models.InternshipApplication, error) {
	application, err := w.store.Applications().GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.InternshipApplication{}, ErrApplicationNotFound
		}
		return models.InternshipApplication{}, err
	}

	return application, nil
}

// NewConflictResponse converts a conflict outcome into its response DTO.
func NewConflictResponse(outcome ConflictOutcome, observedVersion int64) dto.ConflictResponse {
	switch o := outcome.(type) {
	case Conflict:
		lastModifiedAt := o.LastModifiedAt
		checkedAt := o.CheckedAt
		return dto.ConflictResponse{
			Conflict:              true,
			ApplicationID:         o.ApplicationID,
			CurrentStatus:         string(o.CurrentStatus),
			ClientObservedStatus:  string(o.ClientObservedStatus),
			CurrentVersion:        o.CurrentVersion,
			ClientObservedVersion: o.ClientObservedVersion,
			LastModifiedBy:        o.LastModifiedBy,
			LastModifiedAt:        &lastModifiedAt,
			CheckedAt:             &checkedAt,
		}
	case Clean:
		return dto.ConflictResponse{
			ApplicationID:         o.ApplicationID,
			CurrentVersion:        o.CurrentVersion,
			ClientObservedVersion: observedVersion,
		}
	default:
		return dto.ConflictResponse{ClientObservedVersion: observedVersion}
	}
}

func newTransitionResponse(result TransitionResult, resolution string) dto.TransitionResponse {
	entry := dto.NewStatusTransitionResponse(result.AuditEntry)
	return dto.TransitionResponse{
		Application: dto.NewApplicationResponse(result.Application),
		AuditEntry:  &entry,
		Resolution:  resolution,
	}
}

func newVotingSnapshotResponse(snapshot VotingSnapshot) dto.VotingSnapshotResponse {
	response := dto.VotingSnapshotResponse{
		ApplicationID:         snapshot.ApplicationID,
		Votes:                 dto.NewCommitteeVoteResponseSlice(snapshot.CurrentVotes),
		ApprovalPercentage:    snapshot.ApprovalPercentage,
		TotalCommitteeMembers: snapshot.TotalCommitteeMembers,
		VotingComplete:        snapshot.VotingComplete,
		FinalDecision:         decisionString(snapshot.FinalDecision),
	}
	if snapshot.Transition != nil {
		entry := dto.NewStatusTransitionResponse(*snapshot.Transition)
		response.Transition = &entry
	}

	return response
}

func decisionString(decision *Decision) *string {
	if decision == nil {
		return nil
	}
	value := string(*decision)
	return &value
}
