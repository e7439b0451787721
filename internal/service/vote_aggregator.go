package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
	"github.com/noah-isme/internship-approval-api/internal/observability"
	"github.com/noah-isme/internship-approval-api/internal/repository"
)

// approvalThreshold is inclusive: exactly 50% approves.
const approvalThreshold = 50

const committeeDecisionReason = "Committee voting completed"

// Decision is the committee's verdict once every member has voted.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// VoteRequest is one committee member's ballot.
type VoteRequest struct {
	ApplicationID uint
	InstructorID  uint
	Vote          models.VoteValue
	Remarks       *string
}

// VotingSnapshot summarises committee voting for one application.
type VotingSnapshot struct {
	ApplicationID         uint
	CurrentVotes          []models.CommitteeVote
	ApprovalPercentage    int
	TotalCommitteeMembers int
	VotingComplete        bool
	FinalDecision         *Decision
	// Transition is set only on the vote that completed the quorum and moved the application.
	Transition *models.StatusTransition
}

// VoteAggregator collects committee votes and closes voting once the quorum is complete.
type VoteAggregator interface {
	SubmitVote(ctx context.Context, req VoteRequest) (VotingSnapshot, error)
	Snapshot(ctx context.Context, applicationID uint) (VotingSnapshot, error)
}

type voteAggregator struct {
	store   repository.Store
	roster  CommitteeRoster
	machine *statusMachine
	now     func() time.Time
}

// NewVoteAggregator constructs the aggregator. Decisions are applied through a status machine
// sharing the given audit trail and publisher.
func NewVoteAggregator(store repository.Store, roster CommitteeRoster, audit AuditTrail, publisher TransitionPublisher) VoteAggregator {
	return &voteAggregator{
		store:   store,
		roster:  roster,
		machine: newStatusMachine(store, audit, publisher),
		now:     time.Now,
	}
}

func (a *voteAggregator) SubmitVote(ctx context.Context, req VoteRequest) (VotingSnapshot, error) {
	tracer := otel.Tracer("github.com/noah-isme/internship-approval-api/internal/service/vote_aggregator")
	ctx, span := tracer.Start(ctx, "committee.submit_vote")
	span.SetAttributes(
		attribute.Int64("application.id", int64(req.ApplicationID)),
		attribute.Int64("vote.instructor_id", int64(req.InstructorID)),
		attribute.String("vote.value", string(req.Vote)),
	)
	defer span.End()

	if !req.Vote.IsValid() {
		span.SetStatus(codes.Error, "invalid_vote")
		return VotingSnapshot{}, ErrInvalidVote
	}

	var snapshot VotingSnapshot
	err := a.store.Transaction(ctx, func(tx repository.Store) error {
		votedAt := a.now().UTC()

		// Serialises voters on this application and rejects ballots once voting has closed.
		open, err := tx.Applications().ClaimOpenVoting(ctx, req.ApplicationID, votedAt)
		if err != nil {
			return err
		}
		if !open {
			if _, err := tx.Applications().GetByID(ctx, req.ApplicationID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrApplicationNotFound
				}
				return err
			}
			return ErrVotingClosed
		}

		member, err := a.roster.IsMember(ctx, req.ApplicationID, req.InstructorID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotCommitteeMember
		}

		total, err := a.roster.TotalMembers(ctx, req.ApplicationID)
		if err != nil {
			return err
		}

		if err := tx.Votes().Upsert(ctx, &models.CommitteeVote{
			ApplicationID: req.ApplicationID,
			InstructorID:  req.InstructorID,
			Vote:          req.Vote,
			VotedAt:       votedAt,
			Remarks:       req.Remarks,
		}); err != nil {
			return err
		}

		votes, err := tx.Votes().ListByApplication(ctx, req.ApplicationID)
		if err != nil {
			return err
		}

		counted, err := a.rosterVotes(ctx, req.ApplicationID, votes)
		if err != nil {
			return err
		}

		snapshot = tallyVotes(req.ApplicationID, votes, counted, total)
		if !snapshot.VotingComplete {
			return nil
		}

		transition, err := a.decide(ctx, tx, req, snapshot)
		if err != nil {
			return err
		}
		snapshot.Transition = transition
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, voteFailureLabel(err))
		return VotingSnapshot{}, err
	}

	observability.CommitteeVotes().WithLabelValues(string(req.Vote)).Inc()
	if snapshot.Transition != nil {
		a.machine.committed(ctx, *snapshot.Transition)
	}

	span.SetAttributes(
		attribute.Int("vote.approval_percentage", snapshot.ApprovalPercentage),
		attribute.Bool("vote.complete", snapshot.VotingComplete),
	)

	return snapshot, nil
}

// decide applies the committee outcome. Losing a race to another completing vote is a no-op.
func (a *voteAggregator) decide(ctx context.Context, tx repository.Store, req VoteRequest, snapshot VotingSnapshot) (*models.StatusTransition, error) {
	application, err := tx.Applications().GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if application.Status != models.StatusAdvisorApproved {
		return nil, nil
	}

	target := models.StatusDocumentCancelled
	if snapshot.ApprovalPercentage >= approvalThreshold {
		target = models.StatusCommitteeApproved
	}

	reason := committeeDecisionReason
	result, err := a.machine.applyWithin(ctx, tx, TransitionRequest{
		ApplicationID:   application.ID,
		Target:          target,
		Actor:           req.InstructorID,
		ExpectedVersion: application.StatusVersion,
		Reason:          &reason,
		Metadata: map[string]interface{}{
			"approval_percentage":     snapshot.ApprovalPercentage,
			"total_committee_members": snapshot.TotalCommitteeMembers,
			"votes_cast":              len(snapshot.CurrentVotes),
		},
		committeeDecision: true,
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInvalidTransition) {
			return nil, nil
		}
		return nil, err
	}

	return &result.AuditEntry, nil
}

func (a *voteAggregator) Snapshot(ctx context.Context, applicationID uint) (VotingSnapshot, error) {
	if _, err := a.store.Applications().GetByID(ctx, applicationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VotingSnapshot{}, ErrApplicationNotFound
		}
		return VotingSnapshot{}, err
	}

	total, err := a.roster.TotalMembers(ctx, applicationID)
	if err != nil {
		return VotingSnapshot{}, err
	}

	votes, err := a.store.Votes().ListByApplication(ctx, applicationID)
	if err != nil {
		return VotingSnapshot{}, err
	}

	counted, err := a.rosterVotes(ctx, applicationID, votes)
	if err != nil {
		return VotingSnapshot{}, err
	}

	return tallyVotes(applicationID, votes, counted, total), nil
}

// rosterVotes keeps the ballots of instructors still on the committee. A member removed after
// voting no longer counts toward quorum or the approval percentage.
func (a *voteAggregator) rosterVotes(ctx context.Context, applicationID uint, votes []models.CommitteeVote) ([]models.CommitteeVote, error) {
	counted := make([]models.CommitteeVote, 0, len(votes))
	for _, vote := range votes {
		member, err := a.roster.IsMember(ctx, applicationID, vote.InstructorID)
		if err != nil {
			return nil, err
		}
		if member {
			counted = append(counted, vote)
		}
	}
	return counted, nil
}

// tallyVotes reports every ballot in CurrentVotes but only counts the ones in counted.
func tallyVotes(applicationID uint, votes, counted []models.CommitteeVote, total int) VotingSnapshot {
	voters := make(map[uint]struct{}, len(counted))
	approvals := 0
	for _, vote := range counted {
		voters[vote.InstructorID] = struct{}{}
		if vote.Vote == models.VoteApprove {
			approvals++
		}
	}

	snapshot := VotingSnapshot{
		ApplicationID:         applicationID,
		CurrentVotes:          votes,
		TotalCommitteeMembers: total,
	}
	if total <= 0 {
		return snapshot
	}

	snapshot.ApprovalPercentage = int(math.Round(100 * float64(approvals) / float64(total)))
	snapshot.VotingComplete = len(voters) == total
	if snapshot.VotingComplete {
		decision := DecisionRejected
		if snapshot.ApprovalPercentage >= approvalThreshold {
			decision = DecisionApproved
		}
		snapshot.FinalDecision = &decision
	}

	return snapshot
}

func voteFailureLabel(err error) string {
	switch {
	case errors.Is(err, ErrApplicationNotFound):
		return "application_not_found"
	case errors.Is(err, ErrVotingClosed):
		return "voting_closed"
	case errors.Is(err, ErrNotCommitteeMember):
		return "not_committee_member"
	default:
		return "vote_failed"
	}
}
