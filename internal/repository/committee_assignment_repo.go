package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

// CommitteeAssignmentRepository reads the committee roster of course sections.
type CommitteeAssignmentRepository interface {
	CountBySection(ctx context.Context, courseSectionID uint) (int64, error)
	Exists(ctx context.Context, courseSectionID, instructorID uint) (bool, error)
}

type committeeAssignmentRepository struct {
	db *gorm.DB
}

// NewCommitteeAssignmentRepository constructs the roster repository.
func NewCommitteeAssignmentRepository(db *gorm.DB) CommitteeAssignmentRepository {
	return &committeeAssignmentRepository{db: db}
}

func (r *committeeAssignmentRepository) CountBySection(ctx context.Context, courseSectionID uint) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.CommitteeAssignment{}).
		Where("course_section_id = ?", courseSectionID).
		Count(&total).Error; err != nil {
		return 0, err
	}

	return total, nil
}

func (r *committeeAssignmentRepository) Exists(ctx context.Context, courseSectionID, instructorID uint) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.CommitteeAssignment{}).
		Where("course_section_id = ? AND instructor_id = ?", courseSectionID, instructorID).
		Count(&total).Error; err != nil {
		return false, err
	}

	return total > 0, nil
}
