package models

import "time"

// ApplicationStatus enumerates the approval pipeline states of an internship application.
type ApplicationStatus string

const (
	// StatusRegistered is the initial state after a student submits an application.
	StatusRegistered ApplicationStatus = "registered"
	// StatusAdvisorApproved marks advisor sign-off and opens committee voting.
	StatusAdvisorApproved ApplicationStatus = "advisor_approved"
	// StatusCommitteeApproved is reached when committee voting approves the application.
	StatusCommitteeApproved ApplicationStatus = "committee_approved"
	// StatusDocumentApproved is terminal and yields a passing outcome.
	StatusDocumentApproved ApplicationStatus = "document_approved"
	// StatusDocumentCancelled is terminal and yields a failed outcome.
	StatusDocumentCancelled ApplicationStatus = "document_cancelled"
)

// FinalOutcome records how a terminal application ended.
type FinalOutcome string

const (
	OutcomePass   FinalOutcome = "pass"
	OutcomeFailed FinalOutcome = "failed"
)

var transitionGraph = map[ApplicationStatus][]ApplicationStatus{
	StatusRegistered:        {StatusAdvisorApproved, StatusDocumentCancelled},
	StatusAdvisorApproved:   {StatusCommitteeApproved, StatusDocumentCancelled},
	StatusCommitteeApproved: {StatusDocumentApproved, StatusDocumentCancelled},
	StatusDocumentApproved:  {},
	StatusDocumentCancelled: {},
}

var statusLabels = map[ApplicationStatus]string{
	StatusRegistered:        "Registered",
	StatusAdvisorApproved:   "Approved by advisor",
	StatusCommitteeApproved: "Approved by committee",
	StatusDocumentApproved:  "Documents approved",
	StatusDocumentCancelled: "Documents cancelled",
}

// AllStatuses lists every known status in pipeline order.
func AllStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		StatusRegistered,
		StatusAdvisorApproved,
		StatusCommitteeApproved,
		StatusDocumentApproved,
		StatusDocumentCancelled,
	}
}

// IsValid reports whether the status is part of the pipeline.
func (s ApplicationStatus) IsValid() bool {
	_, ok := transitionGraph[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s ApplicationStatus) IsTerminal() bool {
	next, ok := transitionGraph[s]
	return ok && len(next) == 0
}

// DisplayText returns a human-readable label for the status.
func (s ApplicationStatus) DisplayText() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Outcome returns the final outcome implied by a terminal status.
func (s ApplicationStatus) Outcome() (FinalOutcome, bool) {
	switch s {
	case StatusDocumentApproved:
		return OutcomePass, true
	case StatusDocumentCancelled:
		return OutcomeFailed, true
	default:
		return "", false
	}
}

// CanTransition reports whether the edge from -> to exists in the approval graph.
func CanTransition(from, to ApplicationStatus) bool {
	for _, allowed := range transitionGraph[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InternshipApplication is one student's placement record moving through the approval pipeline.
type InternshipApplication struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	StudentID           uint              `gorm:"not null;index" json:"student_id"`
	AdvisorID           *uint             `gorm:"index" json:"advisor_id"`
	CourseSectionID     uint              `gorm:"not null;index" json:"course_section_id"`
	Status              ApplicationStatus `gorm:"size:32;not null;index;default:registered" json:"status"`
	StatusVersion       int64             `gorm:"not null;default:0" json:"status_version"`
	AdvisorApprovalDate *time.Time        `json:"advisor_approval_date"`
	FinalOutcome        *FinalOutcome     `gorm:"size:16" json:"final_outcome"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}
