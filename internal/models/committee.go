package models

import "time"

// VoteValue is a committee member's verdict.
type VoteValue string

const (
	VoteApprove VoteValue = "approve"
	VoteReject  VoteValue = "reject"
)

// IsValid reports whether the vote value is recognised.
func (v VoteValue) IsValid() bool {
	return v == VoteApprove || v == VoteReject
}

// CommitteeVote stores one instructor's vote on an application. A resubmission replaces the row.
type CommitteeVote struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ApplicationID uint      `gorm:"not null;uniqueIndex:idx_committee_vote_voter" json:"application_id"`
	InstructorID  uint      `gorm:"not null;uniqueIndex:idx_committee_vote_voter" json:"instructor_id"`
	Vote          VoteValue `gorm:"size:16;not null" json:"vote"`
	VotedAt       time.Time `gorm:"not null" json:"voted_at"`
	Remarks       *string   `gorm:"type:text" json:"remarks"`
}

// CommitteeAssignment places an instructor on the committee of a course section.
type CommitteeAssignment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CourseSectionID uint      `gorm:"not null;uniqueIndex:idx_committee_assignment_member" json:"course_section_id"`
	InstructorID    uint      `gorm:"not null;uniqueIndex:idx_committee_assignment_member" json:"instructor_id"`
	CreatedAt       time.Time `json:"created_at"`
}
