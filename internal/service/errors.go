package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

var (
	// ErrApplicationNotFound indicates the application does not exist.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrInvalidTransition indicates the requested edge is not in the approval graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConcurrentModification indicates the caller's expected version is stale.
	ErrConcurrentModification = errors.New("application was modified concurrently")
	// ErrVotingClosed indicates the application is not accepting committee votes.
	ErrVotingClosed = errors.New("committee voting is closed for this application")
	// ErrNotCommitteeMember indicates the voter is not on the application's committee.
	ErrNotCommitteeMember = errors.New("instructor is not a committee member for this application")
	// ErrInvalidVote indicates a vote value other than approve or reject.
	ErrInvalidVote = errors.New("vote must be either approve or reject")
	// ErrNotAssignedAdvisor indicates the reviewer is not the application's advisor.
	ErrNotAssignedAdvisor = errors.New("user is not the assigned advisor for this application")
	// ErrBatchShapeMismatch indicates record ids and scores differ in length.
	ErrBatchShapeMismatch = errors.New("record ids and scores must have the same length")
	// ErrScoreOutOfRange indicates a score outside the rubric bounds.
	ErrScoreOutOfRange = errors.New("score outside rubric range")
	// ErrBatchUpdateFailed indicates the batch transaction was rolled back.
	ErrBatchUpdateFailed = errors.New("batch score update failed")
	// ErrUnknownResolution indicates an unsupported conflict resolution strategy.
	ErrUnknownResolution = errors.New("unknown conflict resolution strategy")
)

// InvalidTransitionError carries the rejected edge.
type InvalidTransitionError struct {
	From models.ApplicationStatus
	To   models.ApplicationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConcurrentModificationError carries the versions involved in a lost update.
type ConcurrentModificationError struct {
	ApplicationID uint
	Expected      int64
	Actual        int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("application %d was modified concurrently: expected version %d, current %d", e.ApplicationID, e.Expected, e.Actual)
}

// Is lets errors.Is match ErrConcurrentModification.
func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// BatchUpdateFailedError wraps the storage error that aborted a score batch.
type BatchUpdateFailedError struct {
	Cause error
}

func (e *BatchUpdateFailedError) Error() string {
	return fmt.Sprintf("batch score update failed: %v", e.Cause)
}

// Is lets errors.Is match ErrBatchUpdateFailed.
func (e *BatchUpdateFailedError) Is(target error) bool {
	return target == ErrBatchUpdateFailed
}

func (e *BatchUpdateFailedError) Unwrap() error {
	return e.Cause
}

// ConflictError reports a stale observation detected by the conflict pre-check.
type ConflictError struct {
	Conflict Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("application %d changed since it was observed: version %d, current %d",
		e.Conflict.ApplicationID, e.Conflict.ClientObservedVersion, e.Conflict.CurrentVersion)
}

// Is lets errors.Is match ErrConcurrentModification; both describe the same lost update.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConcurrentModification
}
