package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

// CommitteeVoteRepository persists committee votes keyed by (application, instructor).
type CommitteeVoteRepository interface {
	Upsert(ctx context.Context, vote *models.CommitteeVote) error
	ListByApplication(ctx context.Context, applicationID uint) ([]models.CommitteeVote, error)
}

type committeeVoteRepository struct {
	db *gorm.DB
}

// NewCommitteeVoteRepository constructs the vote repository.
func NewCommitteeVoteRepository(db *gorm.DB) CommitteeVoteRepository {
	return &committeeVoteRepository{db: db}
}

func (r *committeeVoteRepository) Upsert(ctx context.Context, vote *models.CommitteeVote) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "application_id"}, {Name: "instructor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"vote", "voted_at", "remarks"}),
		}).
		Create(vote).Error
}

func (r *committeeVoteRepository) ListByApplication(ctx context.Context, applicationID uint) ([]models.CommitteeVote, error) {
	var votes []models.CommitteeVote
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("voted_at ASC").
		Order("id ASC").
		Find(&votes).Error; err != nil {
		return nil, err
	}

	return votes, nil
}
