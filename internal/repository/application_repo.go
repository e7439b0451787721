package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Page     int
	PageSize int
	Status   models.ApplicationStatus
}

// StatusChange describes a compare-and-set status mutation.
type StatusChange struct {
	ApplicationID   uint
	ExpectedVersion int64
	From            models.ApplicationStatus
	To              models.ApplicationStatus
	ChangedAt       time.Time
	// MarkAdvisorApproval sets advisor_approval_date to ChangedAt unless one is already stored.
	MarkAdvisorApproval bool
	FinalOutcome        *models.FinalOutcome
}

// ApplicationRepository persists internship applications.
type ApplicationRepository interface {
	Create(ctx context.Context, application *models.InternshipApplication) error
	GetByID(ctx context.Context, id uint) (models.InternshipApplication, error)
	List(ctx context.Context, filter ApplicationFilter) ([]models.InternshipApplication, int64, error)
	// CompareAndSetStatus applies the change only when the stored version and status still
	// match. It reports false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, change StatusChange) (bool, error)
	// ClaimOpenVoting write-locks the application row while it sits in advisor_approved.
	// It reports false when voting is no longer open.
	ClaimOpenVoting(ctx context.Context, id uint, at time.Time) (bool, error)
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository constructs the application repository.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, application *models.InternshipApplication) error {
	return r.db.WithContext(ctx).Create(application).Error
}

func (r *applicationRepository) GetByID(ctx context.Context, id uint) (models.InternshipApplication, error) {
	var application models.InternshipApplication
	if err := r.db.WithContext(ctx).First(&application, id).Error; err != nil {
		return models.InternshipApplication{}, err
	}

	return application, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]models.InternshipApplication, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InternshipApplication{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var applications []models.InternshipApplication
	if err := query.Order("created_at DESC").Order("id DESC").Find(&applications).Error; err != nil {
		return nil, 0, err
	}

	return applications, total, nil
}

func (r *applicationRepository) CompareAndSetStatus(ctx context.Context, change StatusChange) (bool, error) {
	updates := map[string]interface{}{
		"status":         change.To,
		"status_version": gorm.Expr("status_version + 1"),
		"updated_at":     change.ChangedAt,
	}
	if change.MarkAdvisorApproval {
		updates["advisor_approval_date"] = gorm.Expr("COALESCE(advisor_approval_date, ?)", change.ChangedAt)
	}
	if change.FinalOutcome != nil {
		updates["final_outcome"] = *change.FinalOutcome
	}

	result := r.db.WithContext(ctx).
		Model(&models.InternshipApplication{}).
		Where("id = ?", change.ApplicationID).
		Where("status_version = ?", change.ExpectedVersion).
		Where("status = ?", change.From).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *applicationRepository) ClaimOpenVoting(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InternshipApplication{}).
		Where("id = ?", id).
		Where("status = ?", models.StatusAdvisorApproved).
		UpdateColumn("updated_at", at)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
