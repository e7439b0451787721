package models

import "time"

// ScoreBatchKind identifies which evaluation flow owns a batch of score records.
type ScoreBatchKind string

const (
	BatchStudentTraining ScoreBatchKind = "student_training"
	BatchVisitorTraining ScoreBatchKind = "visitor_training"
)

// ScoreRecord is one rubric line of an evaluation batch. Score 0 means not yet scored.
type ScoreRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	BatchKind  ScoreBatchKind `gorm:"size:32;not null;index:idx_score_record_batch" json:"batch_kind"`
	BatchID    uint           `gorm:"not null;index:idx_score_record_batch" json:"batch_id"`
	QuestionNo int            `gorm:"not null" json:"question_no"`
	Score      int            `gorm:"not null;default:0" json:"score"`
	Comment    *string        `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
