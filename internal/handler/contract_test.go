package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-approval-api/internal/dto"
	"github.com/noah-isme/internship-approval-api/internal/models"
)

func TestApprovalStatusContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "approval_status.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	app := setupApp(t, nil)
	app.seedCommittee(t, 2, 31, 32)
	application := app.seedApplication(t, models.StatusRegistered, 0, uintPtr(5), 2)
	approve := true

	status, _ := app.do(t, http.MethodPost, applicationPath(application.ID, "/advisor-review"), 5, "advisor", dto.AdvisorReviewRequest{Approved: &approve, ExpectedVersion: int64Ptr(0)})
	require.Equal(t, fiber.StatusOK, status)
	status, _ = app.do(t, http.MethodPost, applicationPath(application.ID, "/votes"), 31, "committee", dto.SubmitVoteRequest{Vote: "approve"})
	require.Equal(t, fiber.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, applicationPath(application.ID, ""), nil)
	req.Header.Set("X-Test-User", strconv.Itoa(100))
	req.Header.Set("X-Test-Role", "student")
	resp, err := app.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var document interface{}
	require.NoError(t, json.Unmarshal(raw, &document))
	require.NoError(t, schema.Validate(document))
}
