package appraisal

import (
	"sort"

	"appraisal/internal/domain/scoring"
)

type standing struct {
	total  float64
	count  int
	latest LedgerEntry
}

// Rank turns ledger entries into a leaderboard. Each staff member's scores
// are summed and normalised against 100 points for every period in scope,
// whether or not they have an entry for it. Staff without entries are left
// out. Ties are broken by staff id.
func Rank(entries []LedgerEntry, staff map[string]Staff, periodCount int) []Ranking {
	out := []Ranking{}
	if periodCount <= 0 {
		return out
	}

	standings := map[string]*standing{}
	for _, entry := range entries {
		st, ok := standings[entry.StaffID]
		if !ok {
			st = &standing{latest: entry}
			standings[entry.StaffID] = st
		}
		st.total += entry.Score
		st.count++
		if entry.CompletedAt.After(st.latest.CompletedAt) {
			st.latest = entry
		}
	}

	for staffID, st := range standings {
		member := staff[staffID]
		out = append(out, Ranking{
			StaffID:          staffID,
			Name:             member.Name,
			Designation:      member.Designation,
			TotalScore:       scoring.Round1(st.total),
			Percentage:       scoring.Round1(st.total / (100 * float64(periodCount)) * 100),
			PeriodsCompleted: st.count,
			LatestGrade:      st.latest.Rating,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage == out[j].Percentage {
			return out[i].StaffID < out[j].StaffID
		}
		return out[i].Percentage > out[j].Percentage
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
