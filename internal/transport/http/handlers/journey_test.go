package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/app/server"
	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/auth"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/platform/config"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testServer struct {
	app   *server.App
	url   string
	admin string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		StoreDriver:        config.DriverSQLite,
		SQLitePath:         filepath.Join(t.TempDir(), "journey.db"),
		JWTSecret:          testSecret,
		DataEncryptionKey:  "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		Environment:        "test",
		RunSeed:            true,
		SeedAdminEmail:     "admin@test.local",
		SeedAdminName:      "Admin",
		MaxBodyBytes:       8388608,
		RateLimitPerMinute: 1000,
		MetricsEnabled:     true,
		LogLevel:           "info",
	}

	app, err := server.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)

	admins, err := app.Service.ListStaff(context.Background(), appraisal.StaffFilter{Role: auth.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, admins, 1)

	return &testServer{app: app, url: ts.URL, admin: token(t, admins[0].ID, auth.RoleAdmin)}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	signed, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, RoleName: role}, time.Hour)
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (int, envelope) {
	t.Helper()
	status, raw := s.raw(t, method, path, bearer, body)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	return status, env
}

func (s *testServer) raw(t *testing.T, method, path, bearer string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, s.url+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type people struct {
	owner, boss, hr, md string
	ownerTok, bossTok   string
	hrTok, mdTok        string
}

func (s *testServer) createStaff(t *testing.T, name, email, role, supervisorID string) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/staff", s.admin, map[string]string{
		"name": name, "email": email, "role": role, "supervisorId": supervisorID,
	})
	require.Equal(t, http.StatusCreated, status, "create staff: %+v", env.Error)
	return decode[appraisal.Staff](t, env).ID
}

func (s *testServer) people(t *testing.T) people {
	t.Helper()
	var p people
	p.boss = s.createStaff(t, "Grace Hopper", "grace@example.com", auth.RoleSupervisor, "")
	p.owner = s.createStaff(t, "Ada Lovelace", "ada@example.com", auth.RoleStaff, p.boss)
	p.hr = s.createStaff(t, "Hedy Lamarr", "hedy@example.com", auth.RoleHR, "")
	p.md = s.createStaff(t, "Mary Jackson", "mary@example.com", auth.RoleMD, "")
	p.ownerTok = token(t, p.owner, auth.RoleStaff)
	p.bossTok = token(t, p.boss, auth.RoleSupervisor)
	p.hrTok = token(t, p.hr, auth.RoleHR)
	p.mdTok = token(t, p.md, auth.RoleMD)
	return p
}

func (s *testServer) transition(t *testing.T, id, bearer string, content *appraisal.Content) (int, envelope) {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/v1/appraisals/"+id+"/transition", bearer, map[string]any{"content": content})
}

func ownerFilled(c appraisal.Content) *appraisal.Content {
	for i := range c.SectionA.Objectives {
		c.SectionA.Objectives[i].Objective = "Ship release"
		c.SectionA.Objectives[i].ActionPlan = "Weekly milestones"
		c.SectionA.Objectives[i].EmployeeComment = "Delivered"
	}
	c.SectionA.SelfAssessment = appraisal.SelfAssessment{
		Achievements: "Release shipped", Challenges: "Hiring", Strengths: "Planning",
		Improvements: "Delegation", Goals: "Lead a team",
	}
	for i := range c.SectionB {
		c.SectionB[i].EmployeeRating = scoring.RatingEP
	}
	return &c
}

func supervisorFilled(c appraisal.Content) *appraisal.Content {
	for i := range c.SectionA.Objectives {
		c.SectionA.Objectives[i].SupervisorComment = "Agreed"
	}
	for i := range c.SectionB {
		c.SectionB[i].SupervisorRating = scoring.RatingSP
	}
	return &c
}

func TestAppraisalApprovalJourney(t *testing.T) {
	s := newTestServer(t)
	p := s.people(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/appraisals", p.ownerTok, map[string]string{})
	require.Equal(t, http.StatusCreated, status, "create: %+v", env.Error)
	draft := decode[appraisal.Appraisal](t, env)
	assert.Equal(t, appraisal.StatusDraft, draft.Status)
	assert.Equal(t, p.boss, draft.SupervisorID)
	require.Len(t, draft.Content.SectionB, 5)

	status, env = s.transition(t, draft.ID, p.ownerTok, ownerFilled(draft.Content))
	require.Equal(t, http.StatusOK, status, "submit: %+v", env.Error)
	submitted := decode[appraisal.Appraisal](t, env)
	assert.Equal(t, appraisal.StatusSubmitted, submitted.Status)

	status, env = s.transition(t, draft.ID, p.bossTok, supervisorFilled(submitted.Content))
	require.Equal(t, http.StatusOK, status, "supervisor approve: %+v", env.Error)
	approved := decode[appraisal.Appraisal](t, env)

	reviewed := approved.Content
	reviewed.Recommendations.LearningNeeds = "Leadership course"
	status, env = s.transition(t, draft.ID, p.hrTok, &reviewed)
	require.Equal(t, http.StatusOK, status, "hr approve: %+v", env.Error)

	status, env = s.transition(t, draft.ID, p.mdTok, nil)
	require.Equal(t, http.StatusOK, status, "md approve: %+v", env.Error)
	done := decode[appraisal.Appraisal](t, env)
	assert.Equal(t, appraisal.StatusMDApproved, done.Status)
	require.NotNil(t, done.Scores)
	assert.Equal(t, 100.0, done.Scores.EmployeeScore)
	assert.Equal(t, 85.0, done.Scores.SupervisorScore)
	assert.Equal(t, 89.5, done.Scores.FinalScore)
	assert.Equal(t, "A", done.Scores.Grade)

	// A repeated final approval is answered without a second ledger entry.
	status, _ = s.transition(t, draft.ID, p.mdTok, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/leaderboard?periodId="+done.PeriodID, p.ownerTok, nil)
	require.Equal(t, http.StatusOK, status)
	board := decode[[]appraisal.Ranking](t, env)
	require.Len(t, board, 1)
	assert.Equal(t, p.owner, board[0].StaffID)
	assert.Equal(t, 89.5, board[0].TotalScore)
	assert.Equal(t, 89.5, board[0].Percentage)
	assert.Equal(t, "A", board[0].LatestGrade)

	status, env = s.do(t, http.MethodGet, "/api/v1/appraisals/"+draft.ID+"/events", p.ownerTok, nil)
	require.Equal(t, http.StatusOK, status)
	events := decode[[]appraisal.Event](t, env)
	require.Len(t, events, 5)
	assert.Equal(t, appraisal.StatusMDApproved, events[4].ToStatus)

	status, env = s.do(t, http.MethodGet, "/api/v1/admin/metrics", s.admin, nil)
	require.Equal(t, http.StatusOK, status)
	snapshot := decode[map[string]any](t, env)
	assert.Equal(t, float64(1), snapshot["ledgerEntriesCreated"])
	assert.Equal(t, float64(1), snapshot["ledgerDuplicatesIgnored"])

	status, pdf := s.raw(t, http.MethodGet, "/api/v1/appraisals/"+draft.ID+"/pdf", p.hrTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestTransitionErrors(t *testing.T) {
	s := newTestServer(t)
	p := s.people(t)

	_, env := s.do(t, http.MethodPost, "/api/v1/appraisals", p.ownerTok, map[string]string{})
	draft := decode[appraisal.Appraisal](t, env)

	status, env := s.transition(t, draft.ID, p.bossTok, nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", env.Error.Code)

	status, env = s.transition(t, draft.ID, p.ownerTok, nil)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Error.Code)
	var details struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.Len(t, details.Fields, 16)

	status, env = s.do(t, http.MethodPost, "/api/v1/appraisals", p.ownerTok, map[string]string{})
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_appraisal", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/appraisals/"+draft.ID, p.hrTok, nil)
	require.Equal(t, http.StatusForbidden, status, "drafts are private to the owner")

	status, _ = s.do(t, http.MethodGet, "/api/v1/appraisals/does-not-exist", p.ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPermissionsAndHealth(t *testing.T) {
	s := newTestServer(t)
	p := s.people(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/staff", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", env.Error.Code)

	status, _ = s.do(t, http.MethodGet, "/api/v1/staff", p.ownerTok, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/ledger/backfill", p.mdTok, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodPost, "/api/v1/ledger/backfill", s.admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decode[appraisal.BackfillSummary](t, env).Scanned)

	status, env = s.do(t, http.MethodGet, "/api/v1/admin/jobs", s.admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, env), 1)

	status, body := s.raw(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
	status, _ = s.raw(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestPeriodsAndStaffValidation(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/staff", s.admin, map[string]string{"name": "X", "email": "nope", "role": "ceo"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Error.Details), "email")
	assert.Contains(t, string(env.Error.Details), "role")

	status, env = s.do(t, http.MethodPost, "/api/v1/periods", s.admin, map[string]any{"year": 2031, "quarter": 2})
	require.Equal(t, http.StatusCreated, status, "create period: %+v", env.Error)
	period := decode[appraisal.Period](t, env)
	assert.Equal(t, "Q2 2031", period.Label)
	assert.False(t, period.IsActive)

	status, _ = s.do(t, http.MethodPost, "/api/v1/periods", s.admin, map[string]any{"year": 2031, "quarter": 2})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/periods", s.admin, map[string]any{"year": 2031, "quarter": 5})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/periods/"+period.ID+"/activate", s.admin, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodGet, "/api/v1/periods/active", s.admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, period.ID, decode[appraisal.Period](t, env).ID)

	status, env = s.do(t, http.MethodPut, "/api/v1/periods/"+period.ID, s.admin, map[string]string{"label": "Mid 2031"})
	require.Equal(t, http.StatusOK, status, "rename period: %+v", env.Error)
	assert.Equal(t, "Mid 2031", decode[appraisal.Period](t, env).Label)
	status, _ = s.do(t, http.MethodPut, "/api/v1/periods/"+period.ID, s.admin, map[string]string{"label": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodDelete, "/api/v1/periods/"+period.ID, s.admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestStaffUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	p := s.people(t)
	ownerPath := "/api/v1/staff/" + p.owner

	status, env := s.do(t, http.MethodPost, "/api/v1/staff", s.admin, map[string]string{
		"name": "Junior", "email": "junior@example.com", "role": auth.RoleStaff, "supervisorId": p.owner,
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Error.Details), "supervisorId")

	status, env = s.do(t, http.MethodPut, ownerPath, p.hrTok, map[string]any{"designation": "Engineer", "department": "R&D"})
	require.Equal(t, http.StatusOK, status, "update staff: %+v", env.Error)
	updated := decode[appraisal.Staff](t, env)
	assert.Equal(t, "Engineer", updated.Designation)
	assert.Equal(t, p.boss, updated.SupervisorID)

	status, _ = s.do(t, http.MethodPut, ownerPath, p.ownerTok, map[string]any{"role": auth.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, status)
	status, env = s.do(t, http.MethodPut, "/api/v1/staff/"+p.hr, s.admin, map[string]any{"supervisorId": p.owner})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Error.Details), "supervisorId")
	status, _ = s.do(t, http.MethodPut, ownerPath, s.admin, map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodPut, "/api/v1/staff/missing", s.admin, map[string]any{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.do(t, http.MethodPost, "/api/v1/appraisals", p.ownerTok, map[string]string{})
	require.Equal(t, http.StatusCreated, status, "create: %+v", env.Error)
	draft := decode[appraisal.Appraisal](t, env)

	status, _ = s.do(t, http.MethodDelete, ownerPath, p.hrTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, env = s.do(t, http.MethodDelete, "/api/v1/staff/"+p.boss, s.admin, nil)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "staff_in_use", env.Error.Code)

	status, _ = s.do(t, http.MethodDelete, ownerPath, s.admin, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, ownerPath, s.admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodGet, "/api/v1/appraisals/"+draft.ID, s.admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodDelete, "/api/v1/staff/"+p.boss, s.admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAttachmentUploadRules(t *testing.T) {
	s := newTestServer(t)
	p := s.people(t)

	_, env := s.do(t, http.MethodPost, "/api/v1/appraisals", p.ownerTok, map[string]string{})
	draft := decode[appraisal.Appraisal](t, env)
	path := "/api/v1/appraisals/" + draft.ID + "/attachment"

	notPDF := []byte("hello world")
	status, env := s.do(t, http.MethodPut, path, p.ownerTok, map[string]any{
		"fileName": "notes.txt",
		"fileSize": len(notPDF),
		"fileData": base64.StdEncoding.EncodeToString(notPDF),
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Error.Details), "fileName")
	assert.Contains(t, string(env.Error.Details), "must be a PDF document")

	doc := []byte("%PDF-1.4\n%%EOF\n")
	status, _ = s.do(t, http.MethodPut, path, p.hrTok, map[string]any{
		"fileName": "evidence.pdf",
		"fileSize": len(doc),
		"fileData": base64.StdEncoding.EncodeToString(doc),
	})
	assert.Equal(t, http.StatusForbidden, status, "drafts are private to the owner")

	status, env = s.do(t, http.MethodPut, path, p.ownerTok, map[string]any{
		"fileName": "evidence.pdf",
		"fileSize": len(doc) + 1,
		"fileData": base64.StdEncoding.EncodeToString(doc),
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Error.Details), "fileSize")

	status, env = s.do(t, http.MethodPut, path, p.ownerTok, map[string]any{
		"fileName": "evidence.pdf",
		"fileSize": len(doc),
		"fileData": base64.StdEncoding.EncodeToString(doc),
	})
	require.Equal(t, http.StatusOK, status, "upload: %+v", env.Error)
	updated := decode[appraisal.Appraisal](t, env)
	require.NotNil(t, updated.Attachment)
	assert.Empty(t, updated.Attachment.FileData)

	status, downloaded := s.raw(t, http.MethodGet, path+"?download=true", p.ownerTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, doc, downloaded)

	status, _ = s.do(t, http.MethodDelete, path, p.ownerTok, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, path, p.ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestScorePreview(t *testing.T) {
	s := newTestServer(t)
	p := s.people(t)

	content := *supervisorFilled(*ownerFilled(appraisal.DefaultContent()))
	status, env := s.do(t, http.MethodPost, "/api/v1/scores/preview", p.ownerTok, content)
	require.Equal(t, http.StatusOK, status)
	result := decode[scoring.Result](t, env)
	assert.Equal(t, 89.5, result.FinalScore)
	assert.Equal(t, "Exceptional", result.GradeLabel)

	content.SectionB[0].EmployeeRating = "ZZ"
	status, env = s.do(t, http.MethodPost, "/api/v1/scores/preview", p.ownerTok, content)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Error.Details), "sectionB[0].employeeRating")
}
