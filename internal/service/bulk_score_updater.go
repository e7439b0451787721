package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/internship-approval-api/internal/observability"
	"github.com/noah-isme/internship-approval-api/internal/repository"
)

// ScoreRange bounds accepted rubric scores, inclusive.
type ScoreRange struct {
	Min int
	Max int
}

// DefaultScoreRange allows 0 (not yet scored) through 5.
var DefaultScoreRange = ScoreRange{Min: 0, Max: 5}

// Contains reports whether score lies within the range.
func (r ScoreRange) Contains(score int) bool {
	return score >= r.Min && score <= r.Max
}

// BatchRequest pairs RecordIDs[i] with Scores[i].
type BatchRequest struct {
	RecordIDs     []uint
	Scores        []int
	SharedComment *string
}

// BatchResult lists updated and missing ids in request order.
type BatchResult struct {
	UpdatedIDs  []uint
	NotFoundIDs []uint
}

// BulkScoreUpdater writes a batch of rubric scores atomically.
type BulkScoreUpdater interface {
	ApplyBatch(ctx context.Context, req BatchRequest) (BatchResult, error)
}

type bulkScoreUpdater struct {
	store  repository.Store
	bounds ScoreRange
	now    func() time.Time
}

// NewBulkScoreUpdater constructs the updater. A zero range falls back to DefaultScoreRange.
func NewBulkScoreUpdater(store repository.Store, bounds ScoreRange) BulkScoreUpdater {
	if bounds == (ScoreRange{}) || bounds.Min > bounds.Max {
		bounds = DefaultScoreRange
	}
	return &bulkScoreUpdater{store: store, bounds: bounds, now: time.Now}
}

func (u *bulkScoreUpdater) ApplyBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	tracer := otel.Tracer("github.com/noah-isme/internship-approval-api/internal/service/bulk_score_updater")
	ctx, span := tracer.Start(ctx, "scores.apply_batch")
	span.SetAttributes(attribute.Int("batch.size", len(req.RecordIDs)))
	defer span.End()

	if len(req.RecordIDs) != len(req.Scores) {
		observability.ScoreBatches().WithLabelValues("rejected").Inc()
		span.SetStatus(codes.Error, "shape_mismatch")
		return BatchResult{}, ErrBatchShapeMismatch
	}
	for _, score := range req.Scores {
		if !u.bounds.Contains(score) {
			observability.ScoreBatches().WithLabelValues("rejected").Inc()
			span.SetStatus(codes.Error, "score_out_of_range")
			return BatchResult{}, ErrScoreOutOfRange
		}
	}

	// Later entries for the same id win; each id is reported once, at its first position.
	order := make([]uint, 0, len(req.RecordIDs))
	scores := make(map[uint]int, len(req.RecordIDs))
	for i, id := range req.RecordIDs {
		if _, seen := scores[id]; !seen {
			order = append(order, id)
		}
		scores[id] = req.Scores[i]
	}

	result := BatchResult{UpdatedIDs: []uint{}, NotFoundIDs: []uint{}}
	err := u.store.Transaction(ctx, func(tx repository.Store) error {
		existing, err := tx.Scores().ExistingIDs(ctx, order)
		if err != nil {
			return err
		}
		present := make(map[uint]struct{}, len(existing))
		for _, id := range existing {
			present[id] = struct{}{}
		}

		updatedAt := u.now().UTC()
		for _, id := range order {
			if _, ok := present[id]; !ok {
				result.NotFoundIDs = append(result.NotFoundIDs, id)
				continue
			}

			update := repository.ScoreUpdate{ID: id, Score: scores[id], UpdatedAt: updatedAt}
			sharedCommentPolicy(&update, req.SharedComment)
			if err := tx.Scores().Update(ctx, update); err != nil {
				return err
			}
			result.UpdatedIDs = append(result.UpdatedIDs, id)
		}

		return nil
	})
	if err != nil {
		observability.ScoreBatches().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_update_failed")
		return BatchResult{}, &BatchUpdateFailedError{Cause: err}
	}

	observability.ScoreBatches().WithLabelValues("applied").Inc()
	observability.ScoreBatchRecords().WithLabelValues("updated").Add(float64(len(result.UpdatedIDs)))
	observability.ScoreBatchRecords().WithLabelValues("not_found").Add(float64(len(result.NotFoundIDs)))
	span.SetAttributes(
		attribute.Int("batch.updated", len(result.UpdatedIDs)),
		attribute.Int("batch.not_found", len(result.NotFoundIDs)),
	)

	return result, nil
}

// sharedCommentPolicy copies one batch-wide comment onto every updated record.
// A nil comment leaves stored comments untouched.
func sharedCommentPolicy(update *repository.ScoreUpdate, shared *string) {
	if shared == nil {
		return
	}
	comment := *shared
	update.Comment = &comment
	update.SetComment = true
}
