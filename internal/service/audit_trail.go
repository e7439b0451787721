package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/models"
	"github.com/noah-isme/internship-approval-api/internal/repository"
)

// AuditEntry captures the details of one applied status change.
type AuditEntry struct {
	ApplicationID uint
	From          models.ApplicationStatus
	To            models.ApplicationStatus
	ChangedBy     uint
	ChangedAt     time.Time
	Reason        *string
	Metadata      map[string]interface{}
}

// AuditTrail is the append-only history of status transitions.
type AuditTrail interface {
	// Append writes the entry through tx so it commits or rolls back with the status change.
	Append(ctx context.Context, tx repository.Store, entry AuditEntry) (models.StatusTransition, error)
	History(ctx context.Context, applicationID uint) ([]models.StatusTransition, error)
	// Latest returns nil when the application has no recorded transitions.
	Latest(ctx context.Context, applicationID uint) (*models.StatusTransition, error)
}

type auditTrail struct {
	store repository.Store
}

// NewAuditTrail constructs the audit trail over the given store.
func NewAuditTrail(store repository.Store) AuditTrail {
	return &auditTrail{store: store}
}

func (a *auditTrail) Append(ctx context.Context, tx repository.Store, entry AuditEntry) (models.StatusTransition, error) {
	if tx == nil {
		tx = a.store
	}

	row := models.StatusTransition{
		ApplicationID: entry.ApplicationID,
		FromStatus:    entry.From,
		ToStatus:      entry.To,
		ChangedBy:     entry.ChangedBy,
		ChangedAt:     entry.ChangedAt,
		Reason:        entry.Reason,
		Metadata:      datatypes.JSONMap{},
	}
	for key, value := range entry.Metadata {
		row.Metadata[key] = value
	}

	if err := tx.Transitions().Append(ctx, &row); err != nil {
		return models.StatusTransition{}, fmt.Errorf("append status transition: %w", err)
	}

	return row, nil
}

func (a *auditTrail) History(ctx context.Context, applicationID uint) ([]models.StatusTransition, error) {
	if _, err := a.store.Applications().GetByID(ctx, applicationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}

	return a.store.Transitions().ListByApplication(ctx, applicationID)
}

func (a *auditTrail) Latest(ctx context.Context, applicationID uint) (*models.StatusTransition, error) {
	entry, err := a.store.Transitions().Latest(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}
