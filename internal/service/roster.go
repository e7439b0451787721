package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/internship-approval-api/internal/repository"
)

// CommitteeRoster answers who sits on the committee deciding an application.
type CommitteeRoster interface {
	TotalMembers(ctx context.Context, applicationID uint) (int, error)
	IsMember(ctx context.Context, applicationID, instructorID uint) (bool, error)
}

type committeeRoster struct {
	applications repository.ApplicationRepository
	assignments  repository.CommitteeAssignmentRepository
}

// NewCommitteeRoster resolves committees through the application's course section.
func NewCommitteeRoster(applications repository.ApplicationRepository, assignments repository.CommitteeAssignmentRepository) CommitteeRoster {
	return &committeeRoster{applications: applications, assignments: assignments}
}

func (r *committeeRoster) TotalMembers(ctx context.Context, applicationID uint) (int, error) {
	sectionID, err := r.sectionOf(ctx, applicationID)
	if err != nil {
		return 0, err
	}

	total, err := r.assignments.CountBySection(ctx, sectionID)
	if err != nil {
		return 0, err
	}

	return int(total), nil
}

func (r *committeeRoster) IsMember(ctx context.Context, applicationID, instructorID uint) (bool, error) {
	sectionID, err := r.sectionOf(ctx, applicationID)
	if err != nil {
		return false, err
	}

	return r.assignments.Exists(ctx, sectionID, instructorID)
}

func (r *committeeRoster) sectionOf(ctx context.Context, applicationID uint) (uint, error) {
	application, err := r.applications.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrApplicationNotFound
		}
		return 0, err
	}

	return application.CourseSectionID, nil
}

type cachedRoster struct {
	inner  CommitteeRoster
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRoster wraps a roster with a Redis read-through cache. A nil client disables caching.
func NewCachedRoster(inner CommitteeRoster, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) CommitteeRoster {
	if cache == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	return &cachedRoster{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "committee_roster_cache").Logger(),
	}
}

// TotalMembers is never cached; quorum must follow the live roster.
func (c *cachedRoster) TotalMembers(ctx context.Context, applicationID uint) (int, error) {
	return c.inner.TotalMembers(ctx, applicationID)
}

// IsMember caches positive answers only, so a newly assigned instructor is admitted at once.
// A removed member keeps voting rights until the entry expires.
func (c *cachedRoster) IsMember(ctx context.Context, applicationID, instructorID uint) (bool, error) {
	key := fmt.Sprintf("roster:member:v1:%d:%d", applicationID, instructorID)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		if cached == "1" {
			return true, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Uint("application_id", applicationID).Msg("roster cache read failed")
	}

	member, err := c.inner.IsMember(ctx, applicationID, instructorID)
	if err != nil {
		return false, err
	}
	if !member {
		return false, nil
	}

	if err := c.cache.Set(ctx, key, "1", c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("application_id", applicationID).Msg("failed to cache roster membership")
	}

	return true, nil
}
