package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the approval repositories behind a single transaction boundary.
type Store interface {
	Applications() ApplicationRepository
	Votes() CommitteeVoteRepository
	Transitions() StatusTransitionRepository
	Scores() ScoreRecordRepository
	Assignments() CommitteeAssignmentRepository
	// Transaction runs fn with a Store bound to one database transaction. Returning an error
	// from fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore builds a gorm-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Applications() ApplicationRepository {
	return NewApplicationRepository(s.db)
}

func (s *gormStore) Votes() CommitteeVoteRepository {
	return NewCommitteeVoteRepository(s.db)
}

func (s *gormStore) Transitions() StatusTransitionRepository {
	return NewStatusTransitionRepository(s.db)
}

func (s *gormStore) Scores() ScoreRecordRepository {
	return NewScoreRecordRepository(s.db)
}

func (s *gormStore) Assignments() CommitteeAssignmentRepository {
	return NewCommitteeAssignmentRepository(s.db)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
