package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

func TestApprovalEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCommittee(t, env.db, 11, 21, 22, 23)
	application := seedApplication(t, env.db, models.StatusRegistered, 0, uintPtr(5), 11)

	advisor, err := env.machine.ApplyTransition(ctx, TransitionRequest{
		ApplicationID:   application.ID,
		Target:          models.StatusAdvisorApproved,
		Actor:           5,
		ExpectedVersion: 0,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), advisor.Application.StatusVersion)
	require.NotNil(t, advisor.Application.AdvisorApprovalDate)

	first, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 21, Vote: models.VoteApprove})
	require.NoError(t, err)
	require.False(t, first.VotingComplete)
	require.Equal(t, 33, first.ApprovalPercentage)
	require.Nil(t, first.FinalDecision)

	second, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 22, Vote: models.VoteReject})
	require.NoError(t, err)
	require.False(t, second.VotingComplete)

	third, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 23, Vote: models.VoteApprove})
	require.NoError(t, err)
	require.True(t, third.VotingComplete)
	require.Equal(t, 67, third.ApprovalPercentage)
	require.Equal(t, 3, third.TotalCommitteeMembers)
	require.Len(t, third.CurrentVotes, 3)
	require.NotNil(t, third.FinalDecision)
	require.Equal(t, DecisionApproved, *third.FinalDecision)
	require.NotNil(t, third.Transition)
	require.Equal(t, models.StatusCommitteeApproved, third.Transition.ToStatus)
	require.EqualValues(t, 67, third.Transition.Metadata["approval_percentage"])

	current := reloadApplication(t, env.db, application.ID)
	require.Equal(t, models.StatusCommitteeApproved, current.Status)
	require.Equal(t, int64(2), current.StatusVersion)

	_, err = env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 21, Vote: models.VoteReject})
	require.ErrorIs(t, err, ErrVotingClosed)

	history, err := env.audit.History(ctx, application.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.StatusAdvisorApproved, history[0].ToStatus)
	require.Equal(t, models.StatusCommitteeApproved, history[1].ToStatus)
	require.Len(t, env.publisher.published(), 2)
}

func TestVoteAggregatorHalfApprovalPasses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCommittee(t, env.db, 3, 31, 32)
	application := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 3)

	_, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 31, Vote: models.VoteApprove})
	require.NoError(t, err)
	snapshot, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 32, Vote: models.VoteReject})
	require.NoError(t, err)

	require.Equal(t, 50, snapshot.ApprovalPercentage)
	require.Equal(t, DecisionApproved, *snapshot.FinalDecision)
	require.Equal(t, models.StatusCommitteeApproved, reloadApplication(t, env.db, application.ID).Status)
}

func TestVoteAggregatorMajorityRejectCancels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCommittee(t, env.db, 4, 41, 42, 43)
	application := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 4)

	for _, vote := range []struct {
		instructor uint
		value      models.VoteValue
	}{{41, models.VoteReject}, {42, models.VoteReject}, {43, models.VoteApprove}} {
		_, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: vote.instructor, Vote: vote.value})
		require.NoError(t, err)
	}

	current := reloadApplication(t, env.db, application.ID)
	require.Equal(t, models.StatusDocumentCancelled, current.Status)
	require.NotNil(t, current.FinalOutcome)
	require.Equal(t, models.OutcomeFailed, *current.FinalOutcome)
	require.Equal(t, int64(2), current.StatusVersion)
}

func TestVoteAggregatorResubmissionReplacesVote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCommittee(t, env.db, 5, 51, 52)
	application := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 5)

	_, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 51, Vote: models.VoteReject})
	require.NoError(t, err)
	snapshot, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 51, Vote: models.VoteApprove, Remarks: stringPtr("changed my mind")})
	require.NoError(t, err)

	require.Len(t, snapshot.CurrentVotes, 1)
	require.Equal(t, models.VoteApprove, snapshot.CurrentVotes[0].Vote)
	require.Equal(t, 50, snapshot.ApprovalPercentage)
	require.False(t, snapshot.VotingComplete)
	require.Equal(t, models.StatusAdvisorApproved, reloadApplication(t, env.db, application.ID).Status)
}

func TestVoteAggregatorPolicyErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCommittee(t, env.db, 6, 61)
	open := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 6)
	registered := seedApplication(t, env.db, models.StatusRegistered, 0, nil, 6)

	_, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: open.ID, InstructorID: 99, Vote: models.VoteApprove})
	require.ErrorIs(t, err, ErrNotCommitteeMember)

	_, err = env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: open.ID, InstructorID: 61, Vote: "maybe"})
	require.ErrorIs(t, err, ErrInvalidVote)

	_, err = env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: registered.ID, InstructorID: 61, Vote: models.VoteApprove})
	require.ErrorIs(t, err, ErrVotingClosed)

	_, err = env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: 404, InstructorID: 61, Vote: models.VoteApprove})
	require.ErrorIs(t, err, ErrApplicationNotFound)

	var votes int64
	require.NoError(t, env.db.Model(&models.CommitteeVote{}).Count(&votes).Error)
	require.Zero(t, votes)
}

func TestVoteAggregatorConcurrentVotesTransitionOnce(t *testing.T) {
	env := newTestEnv(t)
	members := []uint{71, 72, 73, 74, 75}
	seedCommittee(t, env.db, 7, members...)
	application := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 7)

	snapshots := make([]VotingSnapshot, len(members))
	errs := make([]error, len(members))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, member := range members {
		wg.Add(1)
		go func(i int, member uint) {
			defer wg.Done()
			<-start
			snapshots[i], errs[i] = env.votes.SubmitVote(context.Background(), VoteRequest{
				ApplicationID: application.ID,
				InstructorID:  member,
				Vote:          models.VoteApprove,
			})
		}(i, member)
	}
	close(start)
	wg.Wait()

	completed := 0
	transitions := 0
	for i, err := range errs {
		require.NoError(t, err)
		if snapshots[i].VotingComplete {
			completed++
		}
		if snapshots[i].Transition != nil {
			transitions++
		}
	}
	require.Equal(t, 1, completed)
	require.Equal(t, 1, transitions)

	current := reloadApplication(t, env.db, application.ID)
	require.Equal(t, models.StatusCommitteeApproved, current.Status)
	require.Equal(t, int64(2), current.StatusVersion)
	require.Equal(t, int64(1), countTransitions(t, env.db, application.ID))
}

func TestVoteAggregatorSnapshotIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCommittee(t, env.db, 8, 81, 82)
	application := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 8)

	_, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 81, Vote: models.VoteApprove})
	require.NoError(t, err)

	snapshot, err := env.votes.Snapshot(ctx, application.ID)
	require.NoError(t, err)
	require.Equal(t, 50, snapshot.ApprovalPercentage)
	require.Equal(t, 2, snapshot.TotalCommitteeMembers)
	require.False(t, snapshot.VotingComplete)
	require.Nil(t, snapshot.Transition)

	_, err = env.votes.Snapshot(ctx, 404)
	require.True(t, errors.Is(err, ErrApplicationNotFound))
}

func TestTallyVotesWithoutRoster(t *testing.T) {
	votes := []models.CommitteeVote{{InstructorID: 1, Vote: models.VoteApprove}}
	snapshot := tallyVotes(1, votes, votes, 0)
	require.Zero(t, snapshot.ApprovalPercentage)
	require.False(t, snapshot.VotingComplete)
	require.Nil(t, snapshot.FinalDecision)
}

func TestVoteAggregatorIgnoresBallotsOfRemovedMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCommittee(t, env.db, 14, 91, 92, 93)
	application := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 14)

	for _, instructor := range []uint{91, 92} {
		_, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: instructor, Vote: models.VoteApprove})
		require.NoError(t, err)
	}

	require.NoError(t, env.db.Where("course_section_id = ? AND instructor_id = ?", 14, 92).Delete(&models.CommitteeAssignment{}).Error)

	snapshot, err := env.votes.Snapshot(ctx, application.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.CurrentVotes, 2)
	require.Equal(t, 2, snapshot.TotalCommitteeMembers)
	require.Equal(t, 50, snapshot.ApprovalPercentage)
	require.False(t, snapshot.VotingComplete)

	final, err := env.votes.SubmitVote(ctx, VoteRequest{ApplicationID: application.ID, InstructorID: 93, Vote: models.VoteReject})
	require.NoError(t, err)
	require.True(t, final.VotingComplete)
	require.Equal(t, 50, final.ApprovalPercentage)
	require.NotNil(t, final.Transition)
	require.Equal(t, models.StatusCommitteeApproved, final.Transition.ToStatus)
}
