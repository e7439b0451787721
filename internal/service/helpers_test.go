package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/internship-approval-api/internal/models"
	"github.com/noah-isme/internship-approval-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// setupServiceDB opens a file-backed sqlite database. Immediate transactions make concurrent
// writers queue on the busy timeout instead of failing, which the race tests depend on.
func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "approval.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.InternshipApplication{},
		&models.CommitteeVote{},
		&models.CommitteeAssignment{},
		&models.StatusTransition{},
		&models.ScoreRecord{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func seedApplication(t *testing.T, db *gorm.DB, status models.ApplicationStatus, version int64, advisorID *uint, sectionID uint) models.InternshipApplication {
	t.Helper()

	application := models.InternshipApplication{
		StudentID:       100,
		AdvisorID:       advisorID,
		CourseSectionID: sectionID,
		Status:          status,
		StatusVersion:   version,
	}
	require.NoError(t, db.Create(&application).Error)
	return application
}

func seedCommittee(t *testing.T, db *gorm.DB, sectionID uint, instructorIDs ...uint) {
	t.Helper()

	for _, id := range instructorIDs {
		require.NoError(t, db.Create(&models.CommitteeAssignment{CourseSectionID: sectionID, InstructorID: id}).Error)
	}
}

func seedScores(t *testing.T, db *gorm.DB, count int) []models.ScoreRecord {
	t.Helper()

	records := make([]models.ScoreRecord, 0, count)
	for i := 1; i <= count; i++ {
		record := models.ScoreRecord{BatchKind: models.BatchStudentTraining, BatchID: 7, QuestionNo: i}
		require.NoError(t, db.Create(&record).Error)
		records = append(records, record)
	}
	return records
}

func reloadApplication(t *testing.T, db *gorm.DB, id uint) models.InternshipApplication {
	t.Helper()

	var application models.InternshipApplication
	require.NoError(t, db.First(&application, id).Error)
	return application
}

func countTransitions(t *testing.T, db *gorm.DB, applicationID uint) int64 {
	t.Helper()

	var total int64
	require.NoError(t, db.Model(&models.StatusTransition{}).Where("application_id = ?", applicationID).Count(&total).Error)
	return total
}

func uintPtr(v uint) *uint {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.StatusTransition
}

func (p *recordingPublisher) PublishTransition(_ context.Context, transition models.StatusTransition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, transition)
}

func (p *recordingPublisher) published() []models.StatusTransition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.StatusTransition, len(p.events))
	copy(out, p.events)
	return out
}

type testEnv struct {
	db        *gorm.DB
	store     repository.Store
	audit     AuditTrail
	publisher *recordingPublisher
	machine   StatusMachine
	votes     VoteAggregator
	detector  ConflictDetector
	scores    BulkScoreUpdater
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupServiceDB(t)
	store := repository.NewStore(db)
	audit := NewAuditTrail(store)
	publisher := &recordingPublisher{}
	roster := NewCommitteeRoster(store.Applications(), store.Assignments())

	return &testEnv{
		db:        db,
		store:     store,
		audit:     audit,
		publisher: publisher,
		machine:   NewStatusMachine(store, audit, publisher),
		votes:     NewVoteAggregator(store, roster, audit, publisher),
		detector:  NewConflictDetector(store, audit),
		scores:    NewBulkScoreUpdater(store, DefaultScoreRange),
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
