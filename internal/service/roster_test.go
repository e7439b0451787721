package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-approval-api/internal/models"
)

type countingRoster struct {
	total       int
	members     map[uint]bool
	totalCalls  int
	memberCalls int
}

func (r *countingRoster) TotalMembers(context.Context, uint) (int, error) {
	r.totalCalls++
	return r.total, nil
}

func (r *countingRoster) IsMember(_ context.Context, _ uint, instructorID uint) (bool, error) {
	r.memberCalls++
	return r.members[instructorID], nil
}

func TestCachedRosterReadThrough(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	inner := &countingRoster{total: 3, members: map[uint]bool{21: true}}
	roster := NewCachedRoster(inner, redisClient, time.Minute, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		member, err := roster.IsMember(ctx, 9, 21)
		require.NoError(t, err)
		require.True(t, member)

		outsider, err := roster.IsMember(ctx, 9, 99)
		require.NoError(t, err)
		require.False(t, outsider)
	}
	require.Equal(t, 3, inner.memberCalls)
	require.True(t, server.Exists("roster:member:v1:9:21"))
	require.False(t, server.Exists("roster:member:v1:9:99"))

	server.FastForward(2 * time.Minute)
	_, err = roster.IsMember(ctx, 9, 21)
	require.NoError(t, err)
	require.Equal(t, 4, inner.memberCalls)
}

func TestCachedRosterFollowsRosterChanges(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	inner := &countingRoster{total: 2, members: map[uint]bool{21: true}}
	roster := NewCachedRoster(inner, redisClient, time.Minute, testLogger())
	ctx := context.Background()

	total, err := roster.TotalMembers(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	joined, err := roster.IsMember(ctx, 9, 22)
	require.NoError(t, err)
	require.False(t, joined)

	inner.total = 3
	inner.members[22] = true

	total, err = roster.TotalMembers(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, 2, inner.totalCalls)

	joined, err = roster.IsMember(ctx, 9, 22)
	require.NoError(t, err)
	require.True(t, joined)
}

func TestCachedRosterFallsBackWhenRedisDown(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer redisClient.Close()
	server.Close()

	inner := &countingRoster{total: 2, members: map[uint]bool{7: true}}
	roster := NewCachedRoster(inner, redisClient, time.Minute, testLogger())

	member, err := roster.IsMember(context.Background(), 1, 7)
	require.NoError(t, err)
	require.True(t, member)
	require.Equal(t, 1, inner.memberCalls)
}

func TestCachedRosterWithoutRedisIsInner(t *testing.T) {
	inner := &countingRoster{}
	require.Same(t, inner, NewCachedRoster(inner, nil, time.Minute, testLogger()))
}

func TestCommitteeRosterUsesCourseSection(t *testing.T) {
	env := newTestEnv(t)
	seedCommittee(t, env.db, 12, 1, 2, 3)
	seedCommittee(t, env.db, 13, 4)
	application := seedApplication(t, env.db, models.StatusAdvisorApproved, 1, nil, 12)
	roster := NewCommitteeRoster(env.store.Applications(), env.store.Assignments())
	ctx := context.Background()

	total, err := roster.TotalMembers(ctx, application.ID)
	require.NoError(t, err)
	require.Equal(t, 3, total)

	member, err := roster.IsMember(ctx, application.ID, 4)
	require.NoError(t, err)
	require.False(t, member)

	_, err = roster.TotalMembers(ctx, 404)
	require.ErrorIs(t, err, ErrApplicationNotFound)
}
