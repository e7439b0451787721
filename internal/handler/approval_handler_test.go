package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-approval-api/internal/dto"
	"github.com/noah-isme/internship-approval-api/internal/models"
)

func TestApprovalHandlerRegisterAndList(t *testing.T) {
	app := setupApp(t, nil)

	status, payload := app.do(t, http.MethodPost, "/api/v1/applications", 0, "", dto.RegisterApplicationRequest{StudentID: 10, CourseSectionID: 1})
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.False(t, payload.Success)

	status, _ = app.do(t, http.MethodPost, "/api/v1/applications", 30, "committee", dto.RegisterApplicationRequest{StudentID: 10, CourseSectionID: 1})
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = app.do(t, http.MethodPost, "/api/v1/applications", 10, "student", dto.RegisterApplicationRequest{StudentID: 10})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = app.do(t, http.MethodPost, "/api/v1/applications", 1, "admin", dto.RegisterApplicationRequest{CourseSectionID: 1})
	require.Equal(t, fiber.StatusBadRequest, status)

	// The body names another student; the token wins.
	status, payload = app.do(t, http.MethodPost, "/api/v1/applications", 10, "student", dto.RegisterApplicationRequest{StudentID: 77, AdvisorID: uintPtr(5), CourseSectionID: 1})
	require.Equal(t, fiber.StatusCreated, status)
	var created dto.ApplicationResponse
	decodeData(t, payload, &created)
	require.Equal(t, "registered", created.Status)
	require.Equal(t, int64(0), created.StatusVersion)
	require.Equal(t, uint(10), created.StudentID)

	status, payload = app.do(t, http.MethodGet, "/api/v1/applications?status=registered&page=1&page_size=10", 5, "advisor", nil)
	require.Equal(t, fiber.StatusOK, status)
	var items []dto.ApplicationResponse
	decodeData(t, payload, &items)
	require.Len(t, items, 1)
	require.Contains(t, string(payload.Meta), `"total_items":1`)

	status, _ = app.do(t, http.MethodGet, "/api/v1/applications?status=archived", 5, "advisor", nil)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestApprovalHandlerLifecycle(t *testing.T) {
	app := setupApp(t, nil)
	app.seedCommittee(t, 3, 21, 22, 23)
	application := app.seedApplication(t, models.StatusRegistered, 0, uintPtr(5), 3)
	approve := true

	status, _ := app.do(t, http.MethodPost, applicationPath(application.ID, "/advisor-review"), 6, "advisor", dto.AdvisorReviewRequest{Approved: &approve, ExpectedVersion: int64Ptr(0)})
	require.Equal(t, fiber.StatusForbidden, status)

	status, payload := app.do(t, http.MethodPost, applicationPath(application.ID, "/advisor-review"), 5, "advisor", dto.AdvisorReviewRequest{Approved: &approve, ExpectedVersion: int64Ptr(0)})
	require.Equal(t, fiber.StatusOK, status)
	var reviewed dto.TransitionResponse
	decodeData(t, payload, &reviewed)
	require.Equal(t, "advisor_approved", reviewed.Application.Status)
	require.Equal(t, int64(1), reviewed.Application.StatusVersion)

	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/votes"), 99, "committee", dto.SubmitVoteRequest{Vote: "approve"})
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/votes"), 21, "committee", dto.SubmitVoteRequest{Vote: "abstain"})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/votes"), 21, "committee", dto.SubmitVoteRequest{Vote: "approve"})
	require.Equal(t, fiber.StatusOK, status)

	status, payload = app.do(t, http.MethodPost, applicationPath(application.ID, "/votes"), 22, "committee", dto.SubmitVoteRequest{Vote: "approve"})
	require.Equal(t, fiber.StatusOK, status)
	var snapshot dto.VotingSnapshotResponse
	decodeData(t, payload, &snapshot)
	require.True(t, snapshot.VotingComplete)
	require.Equal(t, 67, snapshot.ApprovalPercentage)
	require.NotNil(t, snapshot.Transition)
	require.Equal(t, "committee_approved", snapshot.Transition.ToStatus)

	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/votes"), 23, "committee", dto.SubmitVoteRequest{Vote: "reject"})
	require.Equal(t, fiber.StatusConflict, status)

	status, payload = app.do(t, http.MethodGet, applicationPath(application.ID, "/history"), 100, "student", nil)
	require.Equal(t, fiber.StatusOK, status)
	var history []dto.StatusTransitionResponse
	decodeData(t, payload, &history)
	require.Len(t, history, 2)

	status, payload = app.do(t, http.MethodPost, applicationPath(application.ID, "/transitions"), 5, "advisor", dto.ApplyTransitionRequest{
		TargetStatus:    "document_approved",
		ExpectedVersion: int64Ptr(2),
	})
	require.Equal(t, fiber.StatusOK, status)
	var finished dto.TransitionResponse
	decodeData(t, payload, &finished)
	require.Equal(t, "document_approved", finished.Application.Status)
	require.Equal(t, "pass", *finished.Application.FinalOutcome)
}

func TestApprovalHandlerTransitionErrors(t *testing.T) {
	app := setupApp(t, nil)
	application := app.seedApplication(t, models.StatusCommitteeApproved, 2, nil, 1)

	status, payload := app.do(t, http.MethodPost, applicationPath(application.ID, "/transitions"), 1, "admin", dto.ApplyTransitionRequest{
		TargetStatus:    "document_approved",
		ExpectedVersion: int64Ptr(1),
		ObservedStatus:  "advisor_approved",
	})
	require.Equal(t, fiber.StatusConflict, status)
	var conflict dto.ConflictResponse
	decodeData(t, payload, &conflict)
	require.True(t, conflict.Conflict)
	require.Equal(t, int64(2), conflict.CurrentVersion)
	require.Equal(t, int64(1), conflict.ClientObservedVersion)
	require.Equal(t, "committee_approved", conflict.CurrentStatus)

	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/transitions"), 1, "admin", dto.ApplyTransitionRequest{
		TargetStatus:    "registered",
		ExpectedVersion: int64Ptr(2),
	})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/transitions"), 30, "committee", dto.ApplyTransitionRequest{
		TargetStatus:    "document_approved",
		ExpectedVersion: int64Ptr(2),
	})
	require.Equal(t, fiber.StatusForbidden, status)

	assigned := app.seedApplication(t, models.StatusRegistered, 0, uintPtr(5), 1)
	status, payload = app.do(t, http.MethodPost, applicationPath(assigned.ID, "/transitions"), 6, "advisor", dto.ApplyTransitionRequest{
		TargetStatus:    "advisor_approved",
		ExpectedVersion: int64Ptr(0),
	})
	require.Equal(t, fiber.StatusForbidden, status)
	require.False(t, payload.Success)

	status, payload = app.do(t, http.MethodGet, applicationPath(assigned.ID, ""), 6, "advisor", nil)
	require.Equal(t, fiber.StatusOK, status)
	var untouched dto.ApprovalStatusResponse
	decodeData(t, payload, &untouched)
	require.Equal(t, "registered", untouched.Application.Status)

	status, _ = app.do(t, http.MethodGet, applicationPath(9999, ""), 1, "admin", nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = app.do(t, http.MethodGet, "/api/v1/applications/abc", 1, "admin", nil)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestApprovalHandlerConflictCheck(t *testing.T) {
	app := setupApp(t, nil)
	application := app.seedApplication(t, models.StatusAdvisorApproved, 1, nil, 1)

	status, payload := app.do(t, http.MethodPost, applicationPath(application.ID, "/conflict-check"), 100, "student", dto.ConflictCheckRequest{ObservedVersion: int64Ptr(1)})
	require.Equal(t, fiber.StatusOK, status)
	var clean dto.ConflictResponse
	decodeData(t, payload, &clean)
	require.False(t, clean.Conflict)

	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/conflict-check"), 100, "student", dto.ConflictCheckRequest{})
	require.Equal(t, fiber.StatusBadRequest, status)
}

func int64Ptr(v int64) *int64 {
	return &v
}
