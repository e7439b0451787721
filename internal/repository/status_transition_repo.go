package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

// StatusTransitionRepository is the append-only store of status audit rows.
type StatusTransitionRepository interface {
	Append(ctx context.Context, entry *models.StatusTransition) error
	ListByApplication(ctx context.Context, applicationID uint) ([]models.StatusTransition, error)
	Latest(ctx context.Context, applicationID uint) (models.StatusTransition, error)
}

type statusTransitionRepository struct {
	db *gorm.DB
}

// NewStatusTransitionRepository constructs the audit repository.
func NewStatusTransitionRepository(db *gorm.DB) StatusTransitionRepository {
	return &statusTransitionRepository{db: db}
}

func (r *statusTransitionRepository) Append(ctx context.Context, entry *models.StatusTransition) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *statusTransitionRepository) ListByApplication(ctx context.Context, applicationID uint) ([]models.StatusTransition, error) {
	var entries []models.StatusTransition
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("changed_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *statusTransitionRepository) Latest(ctx context.Context, applicationID uint) (models.StatusTransition, error) {
	var entry models.StatusTransition
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("changed_at DESC").
		Order("id DESC").
		First(&entry).Error; err != nil {
		return models.StatusTransition{}, err
	}

	return entry, nil
}
