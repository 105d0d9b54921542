package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/accredia/stepgate/internal/engine"
	"github.com/accredia/stepgate/pkg/api"
)

func newTestServer(t *testing.T) (*echo.Echo, api.Engine) {
	t.Helper()

	eng := engine.NewInMemoryEngine()
	e := echo.New()
	NewServer(eng).RegisterRoutes(e.Group("/api/v1"))
	return e, eng
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const snapshotBody = `{
	"id": "flow-v1",
	"name": "flow",
	"version": 1,
	"steps": [
		{"id": "intake", "is_entry_point": true, "next_step_id": "review"},
		{"id": "review", "next_step_id": "final", "rejection_target_id": "intake"},
		{"id": "final", "is_final_step": true}
	]
}`

func registerAndAdmit(t *testing.T, e *echo.Echo) api.Participant {
	t.Helper()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/snapshots", snapshotBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, e, http.MethodPost, "/api/v1/participants",
		`{"tenant_id": "expo", "snapshot_id": "flow-v1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p api.Participant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.NotEmpty(t, p.ID)
	return p
}

func TestAdmitAndGetParticipant(t *testing.T) {
	e, _ := newTestServer(t)
	p := registerAndAdmit(t, e)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/participants/"+p.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.Participant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "intake", got.CurrentStepID)
	require.Equal(t, api.StatusPending, got.Status)
}

func TestGetSnapshot(t *testing.T) {
	e, _ := newTestServer(t)
	registerAndAdmit(t, e)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/snapshots/flow-v1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap api.WorkflowSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Steps, 3)
}

func TestRegisterSnapshot_Duplicate(t *testing.T) {
	e, _ := newTestServer(t)
	registerAndAdmit(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/snapshots", snapshotBody)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterSnapshot_Invalid(t *testing.T) {
	e, _ := newTestServer(t)

	// No entry point.
	rec := doJSON(t, e, http.MethodPost, "/api/v1/snapshots",
		`{"id": "bad-v1", "steps": [{"id": "a"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessAction(t *testing.T) {
	e, _ := newTestServer(t)
	p := registerAndAdmit(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/participants/"+p.ID+"/actions",
		`{"actor_id": "clerk", "action": "APPROVE", "remarks": "ok"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res api.TransitionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "intake", res.PreviousStepID)
	require.Equal(t, "review", res.NextStepID)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/participants/"+p.ID+"/approvals", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []api.Approval
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "clerk", rows[0].UserID)
}

func TestProcessAction_Validation(t *testing.T) {
	e, _ := newTestServer(t)
	p := registerAndAdmit(t, e)

	// missing actor
	rec := doJSON(t, e, http.MethodPost, "/api/v1/participants/"+p.ID+"/actions",
		`{"action": "APPROVE"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// malformed version stamp
	rec = doJSON(t, e, http.MethodPost, "/api/v1/participants/"+p.ID+"/actions",
		`{"actor_id": "clerk", "action": "APPROVE", "expected_version": "yesterday"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	e, _ := newTestServer(t)
	p := registerAndAdmit(t, e)

	// Unknown participant: 404.
	rec := doJSON(t, e, http.MethodGet, "/api/v1/participants/ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Unconfigured transition: 422. intake has no bypass target.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/participants/"+p.ID+"/actions",
		`{"actor_id": "clerk", "action": "BYPASS"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Stale version stamp: 409.
	stale := time.Now().Add(-time.Hour).Format(time.RFC3339Nano)
	body := fmt.Sprintf(`{"actor_id": "clerk", "action": "APPROVE", "expected_version": %q}`, stale)
	rec = doJSON(t, e, http.MethodPost, "/api/v1/participants/"+p.ID+"/actions", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSweepEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	registerAndAdmit(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/sla/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report api.SweepReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	// The fixture has no SLA steps, so the sweep is quiet.
	require.Zero(t, report.Checked)
}
