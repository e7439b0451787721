package dto

import (
	"time"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// RegisterApplicationRequest creates a new application at the registered status.
type RegisterApplicationRequest struct {
	StudentID       uint  `json:"student_id" validate:"required"`
	AdvisorID       *uint `json:"advisor_id" validate:"omitempty,gt=0"`
	CourseSectionID uint  `json:"course_section_id" validate:"required"`
}

// ApplicationListQuery filters the application listing.
type ApplicationListQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=registered advisor_approved committee_approved document_approved document_cancelled"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ApplicationResponse serializes an internship application.
type ApplicationResponse struct {
	ID                  uint       `json:"id"`
	StudentID           uint       `json:"student_id"`
	AdvisorID           *uint      `json:"advisor_id,omitempty"`
	CourseSectionID     uint       `json:"course_section_id"`
	Status              string     `json:"status"`
	StatusLabel         string     `json:"status_label"`
	StatusVersion       int64      `json:"status_version"`
	AdvisorApprovalDate *time.Time `json:"advisor_approval_date,omitempty"`
	FinalOutcome        *string    `json:"final_outcome,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NewApplicationResponse converts a model into a DTO.
func NewApplicationResponse(model models.InternshipApplication) ApplicationResponse {
	response := ApplicationResponse{
		ID:                  model.ID,
		StudentID:           model.StudentID,
		AdvisorID:           model.AdvisorID,
		CourseSectionID:     model.CourseSectionID,
		Status:              string(model.Status),
		StatusLabel:         model.Status.DisplayText(),
		StatusVersion:       model.StatusVersion,
		AdvisorApprovalDate: model.AdvisorApprovalDate,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
	if model.FinalOutcome != nil {
		outcome := string(*model.FinalOutcome)
		response.FinalOutcome = &outcome
	}

	return response
}

// NewApplicationResponseSlice converts a slice of models into DTOs.
func NewApplicationResponseSlice(items []models.InternshipApplication) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewApplicationResponse(item))
	}
	return out
}

// ApplicationListResponse wraps a paginated application listing.
type ApplicationListResponse struct {
	Items      []ApplicationResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// StatusTransitionResponse serializes one audit trail row.
type StatusTransitionResponse struct {
	ID            uint                   `json:"id"`
	ApplicationID uint                   `json:"application_id"`
	FromStatus    string                 `json:"from_status"`
	ToStatus      string                 `json:"to_status"`
	ChangedBy     uint                   `json:"changed_by"`
	ChangedAt     time.Time              `json:"changed_at"`
	Reason        *string                `json:"reason,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewStatusTransitionResponse converts a model into a DTO.
func NewStatusTransitionResponse(model models.StatusTransition) StatusTransitionResponse {
	response := StatusTransitionResponse{
		ID:            model.ID,
		ApplicationID: model.ApplicationID,
		FromStatus:    string(model.FromStatus),
		ToStatus:      string(model.ToStatus),
		ChangedBy:     model.ChangedBy,
		ChangedAt:     model.ChangedAt,
		Reason:        model.Reason,
	}
	if len(model.Metadata) > 0 {
		response.Metadata = map[string]interface{}(model.Metadata)
	}

	return response
}

// NewStatusTransitionResponseSlice converts a slice of models into DTOs.
func NewStatusTransitionResponseSlice(items []models.StatusTransition) []StatusTransitionResponse {
	out := make([]StatusTransitionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewStatusTransitionResponse(item))
	}
	return out
}

// ApplyTransitionRequest asks for a status change guarded by the caller's last observation.
type ApplyTransitionRequest struct {
	TargetStatus    string  `json:"target_status" validate:"required,oneof=registered advisor_approved committee_approved document_approved document_cancelled"`
	ExpectedVersion *int64  `json:"expected_version" validate:"required,min=0"`
	ObservedStatus  string  `json:"observed_status" validate:"omitempty,oneof=registered advisor_approved committee_approved document_approved document_cancelled"`
	Reason          *string `json:"reason" validate:"omitempty,max=2000"`
	OnConflict      string  `json:"on_conflict" validate:"omitempty,oneof=overwrite abort"`
}

// TransitionResponse reports the outcome of a guarded transition.
type TransitionResponse struct {
	Application ApplicationResponse       `json:"application"`
	AuditEntry  *StatusTransitionResponse `json:"audit_entry,omitempty"`
	Aborted     bool                      `json:"aborted"`
	Resolution  string                    `json:"resolution,omitempty"`
}

// AdvisorReviewRequest records the assigned advisor's decision.
type AdvisorReviewRequest struct {
	Approved        *bool   `json:"approved" validate:"required"`
	ExpectedVersion *int64  `json:"expected_version" validate:"required,min=0"`
	Remarks         *string `json:"remarks" validate:"omitempty,max=2000"`
}

// ConflictCheckRequest carries the caller's last observed application state.
type ConflictCheckRequest struct {
	ObservedVersion *int64 `json:"observed_version" validate:"required,min=0"`
	ObservedStatus  string `json:"observed_status" validate:"omitempty,oneof=registered advisor_approved committee_approved document_approved document_cancelled"`
}

// ConflictResponse is the result of a conflict pre-check.
type ConflictResponse struct {
	Conflict              bool       `json:"conflict"`
	ApplicationID         uint       `json:"application_id"`
	CurrentStatus         string     `json:"current_status,omitempty"`
	ClientObservedStatus  string     `json:"client_observed_status,omitempty"`
	CurrentVersion        int64      `json:"current_version"`
	ClientObservedVersion int64      `json:"client_observed_version"`
	LastModifiedBy        uint       `json:"last_modified_by,omitempty"`
	LastModifiedAt        *time.Time `json:"last_modified_at,omitempty"`
	CheckedAt             *time.Time `json:"checked_at,omitempty"`
}

// ApprovalStatusResponse is the full approval view of one application.
type ApprovalStatusResponse struct {
	Application           ApplicationResponse        `json:"application"`
	StatusText            string                     `json:"status_text"`
	Votes                 []CommitteeVoteResponse    `json:"votes"`
	ApprovalPercentage    int                        `json:"approval_percentage"`
	TotalCommitteeMembers int                        `json:"total_committee_members"`
	VotingComplete        bool                       `json:"voting_complete"`
	FinalDecision         *string                    `json:"final_decision,omitempty"`
	History               []StatusTransitionResponse `json:"history"`
	AdvisorApprovalDate   *time.Time                 `json:"advisor_approval_date,omitempty"`
	NeedsAttention        bool                       `json:"needs_attention"`
}
