package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

// ScoreUpdate is a single score write. Comment is only written when SetComment is true.
type ScoreUpdate struct {
	ID         uint
	Score      int
	Comment    *string
	SetComment bool
	UpdatedAt  time.Time
}

// ScoreRecordRepository reads and mutates pre-existing evaluation score rows.
type ScoreRecordRepository interface {
	ExistingIDs(ctx context.Context, ids []uint) ([]uint, error)
	Update(ctx context.Context, update ScoreUpdate) error
	ListByBatch(ctx context.Context, kind models.ScoreBatchKind, batchID uint) ([]models.ScoreRecord, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.ScoreRecord, error)
}

type scoreRecordRepository struct {
	db *gorm.DB
}

// NewScoreRecordRepository constructs the score repository.
func NewScoreRecordRepository(db *gorm.DB) ScoreRecordRepository {
	return &scoreRecordRepository{db: db}
}

func (r *scoreRecordRepository) ExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return []uint{}, nil
	}

	var existing []uint
	if err := r.db.WithContext(ctx).
		Model(&models.ScoreRecord{}).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error; err != nil {
		return nil, err
	}

	return existing, nil
}

func (r *scoreRecordRepository) Update(ctx context.Context, update ScoreUpdate) error {
	values := map[string]interface{}{
		"score":      update.Score,
		"updated_at": update.UpdatedAt,
	}
	if update.SetComment {
		values["comment"] = update.Comment
	}

	result := r.db.WithContext(ctx).
		Model(&models.ScoreRecord{}).
		Where("id = ?", update.ID).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *scoreRecordRepository) ListByBatch(ctx context.Context, kind models.ScoreBatchKind, batchID uint) ([]models.ScoreRecord, error) {
	var records []models.ScoreRecord
	if err := r.db.WithContext(ctx).
		Where("batch_kind = ? AND batch_id = ?", kind, batchID).
		Order("question_no ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *scoreRecordRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.ScoreRecord, error) {
	if len(ids) == 0 {
		return []models.ScoreRecord{}, nil
	}

	var records []models.ScoreRecord
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}
