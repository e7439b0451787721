package dto

import (
	"time"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

// SubmitVoteRequest is a committee member's ballot.
type SubmitVoteRequest struct {
	Vote    string  `json:"vote" validate:"required,oneof=approve reject"`
	Remarks *string `json:"remarks" validate:"omitempty,max=2000"`
}

// CommitteeVoteResponse serializes a committee vote.
type CommitteeVoteResponse struct {
	ID            uint      `json:"id"`
	ApplicationID uint      `json:"application_id"`
	InstructorID  uint      `json:"instructor_id"`
	Vote          string    `json:"vote"`
	VotedAt       time.Time `json:"voted_at"`
	Remarks       *string   `json:"remarks,omitempty"`
}

// NewCommitteeVoteResponse converts a model into a DTO.
func NewCommitteeVoteResponse(model models.CommitteeVote) CommitteeVoteResponse {
	return CommitteeVoteResponse{
		ID:            model.ID,
		ApplicationID: model.ApplicationID,
		InstructorID:  model.InstructorID,
		Vote:          string(model.Vote),
		VotedAt:       model.VotedAt,
		Remarks:       model.Remarks,
	}
}

// NewCommitteeVoteResponseSlice converts a slice of models into DTOs.
func NewCommitteeVoteResponseSlice(items []models.CommitteeVote) []CommitteeVoteResponse {
	out := make([]CommitteeVoteResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewCommitteeVoteResponse(item))
	}
	return out
}

// VotingSnapshotResponse summarises committee voting for an application.
type VotingSnapshotResponse struct {
	ApplicationID         uint                      `json:"application_id"`
	Votes                 []CommitteeVoteResponse   `json:"votes"`
	ApprovalPercentage    int                       `json:"approval_percentage"`
	TotalCommitteeMembers int                       `json:"total_committee_members"`
	VotingComplete        bool                      `json:"voting_complete"`
	FinalDecision         *string                   `json:"final_decision,omitempty"`
	Transition            *StatusTransitionResponse `json:"transition,omitempty"`
}
