package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"appraisal/internal/domain/appraisal"
)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestLeaderboardTable(t *testing.T) {
	rankings := []appraisal.Ranking{
		{Rank: 1, StaffID: "a", Name: "Ada Lovelace", Designation: "Engineer", TotalScore: 180, Percentage: 45, PeriodsCompleted: 2, LatestGrade: "A"},
		{Rank: 2, StaffID: "b", Name: "Bo Diddley", TotalScore: 90, Percentage: 22.5, PeriodsCompleted: 1, LatestGrade: "B"},
	}
	var buf bytes.Buffer
	require.NoError(t, writeLeaderboard(&buf, rankings))
	golden(t).Assert(t, "leaderboard", buf.Bytes())
}

func TestPeriodsTable(t *testing.T) {
	periods := []appraisal.Period{
		{ID: "p1", Year: 2025, Quarter: 1, Label: "Q1 2025"},
		{ID: "p2", Year: 2025, Quarter: 2, Label: "Q2 2025", IsActive: true},
	}
	var buf bytes.Buffer
	require.NoError(t, writePeriods(&buf, periods))
	golden(t).Assert(t, "periods", buf.Bytes())
}

func TestEmptyLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLeaderboard(&buf, nil))
	require.Equal(t, "no ledger entries in scope\n", buf.String())
}
