package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/appraisal/sqlitestore"
	"appraisal/internal/domain/auth"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/platform/config"
)

func run(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	if opts.Config == nil {
		opts.Config = func() config.Config { return config.Config{JWTSecret: "cli-secret"} }
	}
	cmd := NewRootCommandWith(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// sqliteOpener serves every command from one temp database.
func sqliteOpener(t *testing.T) (*appraisal.Service, ServiceOpener) {
	t.Helper()
	store, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := appraisal.NewService(store, scoring.Default(), nil, nil)
	return svc, func(context.Context) (*appraisal.Service, func(), error) {
		return svc, func() {}, nil
	}
}

func TestScoreCommandText(t *testing.T) {
	out, err := run(t, &RootOptions{}, "score", "--employee", "EP,EP,EP,EP,EP", "--supervisor", "sp,SP,SP,SP,SP")
	require.NoError(t, err)
	assert.Equal(t, "employee 100.0  supervisor 85.0  final 89.5  grade A (Exceptional)\n", out)
}

func TestScoreCommandJSON(t *testing.T) {
	out, err := run(t, &RootOptions{}, "--format", "json", "score", "--employee", "AP,WP", "--supervisor", "AP,WP")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   scoring.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 55.0, resp.Data.EmployeeScore)
	assert.Equal(t, 55.0, resp.Data.FinalScore)
	assert.Equal(t, "C", resp.Data.Grade)
}

func TestScoreCommandRejectsUnknownSymbol(t *testing.T) {
	_, err := run(t, &RootOptions{}, "score", "--employee", "EP,XX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown rating "XX"`)
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, &RootOptions{}, "token", "--user", "staff-7", "--role", auth.RoleHR, "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.ParseToken("cli-secret", string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, "staff-7", claims.UserID)
	assert.Equal(t, auth.RoleHR, claims.RoleName)

	_, err = run(t, &RootOptions{}, "token", "--user", "staff-7", "--role", "ceo")
	require.Error(t, err)
}

func TestLeaderboardRequiresOneScope(t *testing.T) {
	_, opener := sqliteOpener(t)
	_, err := run(t, &RootOptions{OpenService: opener}, "leaderboard")
	require.Error(t, err)
	_, err = run(t, &RootOptions{OpenService: opener}, "leaderboard", "--year", "2025", "--period", "p1")
	require.Error(t, err)

	out, err := run(t, &RootOptions{OpenService: opener}, "leaderboard", "--year", "2025")
	require.NoError(t, err)
	assert.Equal(t, "no ledger entries in scope\n", out)
}

func TestBackfillAndPeriodsCommands(t *testing.T) {
	svc, opener := sqliteOpener(t)
	_, err := svc.CreatePeriod(context.Background(), 2025, 1, "", true)
	require.NoError(t, err)

	out, err := run(t, &RootOptions{OpenService: opener}, "backfill-ledger")
	require.NoError(t, err)
	assert.Equal(t, "scanned 0, created 0, skipped 0\n", out)

	out, err = run(t, &RootOptions{OpenService: opener}, "--format", "json", "periods", "list", "--year", "2025")
	require.NoError(t, err)
	var resp struct {
		Data []appraisal.Period `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Q1 2025", resp.Data[0].Label)
	assert.True(t, resp.Data[0].IsActive)
}

func TestResyncUnknownAppraisal(t *testing.T) {
	_, opener := sqliteOpener(t)
	_, err := run(t, &RootOptions{OpenService: opener}, "resync-ledger", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, appraisal.ErrNotFound)
}
