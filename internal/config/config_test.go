package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APPROVAL_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 2*time.Minute, cfg.RosterCacheTTL)
	require.Equal(t, 168*time.Hour, cfg.WorkflowStalledAfter)
	require.Equal(t, 0, cfg.ScoreMin)
	require.Equal(t, 5, cfg.ScoreMax)
	require.Equal(t, "internship:approval", cfg.EventsChannel)
	require.Equal(t, 30, cfg.VoteRateLimitPerMin)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APPROVAL_JWT_SECRET", "secret")
	t.Setenv("APPROVAL_APP_PORT", ":9090")
	t.Setenv("APPROVAL_DATABASE_URL", "file:approval.db")
	t.Setenv("APPROVAL_ROSTER_CACHE_TTL", "30s")
	t.Setenv("APPROVAL_SCORING_MAX", "10")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.True(t, cfg.UsesSQLite())
	require.Equal(t, 30*time.Second, cfg.RosterCacheTTL)
	require.Equal(t, 10, cfg.ScoreMax)
}

func TestLoadRequiresSecretAndValidRanges(t *testing.T) {
	t.Setenv("APPROVAL_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("APPROVAL_JWT_SECRET", "secret")
	t.Setenv("APPROVAL_SCORING_MIN", "6")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("APPROVAL_SCORING_MIN", "0")
	t.Setenv("APPROVAL_WORKFLOW_STALLED_AFTER", "soon")
	_, err = Load()
	require.Error(t, err)
}
