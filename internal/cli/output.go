package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/scoring"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output, kept off stdout so JSON stays parseable
	Verbose   bool
}

// CLIResponse is the JSON shape of every command result.
type CLIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// Emit writes data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func writeLeaderboard(w io.Writer, rankings []appraisal.Ranking) error {
	if len(rankings) == 0 {
		_, err := fmt.Fprintln(w, "no ledger entries in scope")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tDESIGNATION\tTOTAL\tPERCENT\tPERIODS\tGRADE")
	for _, r := range rankings {
		designation := r.Designation
		if designation == "" {
			designation = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%d\t%s\n",
			r.Rank, r.Name, designation, r.TotalScore, r.Percentage, r.PeriodsCompleted, r.LatestGrade)
	}
	return tw.Flush()
}

func writePeriods(w io.Writer, periods []appraisal.Period) error {
	if len(periods) == 0 {
		_, err := fmt.Fprintln(w, "no periods")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tYEAR\tQUARTER\tACTIVE")
	for _, p := range periods {
		active := "no"
		if p.IsActive {
			active = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.ID, p.Label, p.Year, p.Quarter, active)
	}
	return tw.Flush()
}

func writeScore(w io.Writer, result scoring.Result) error {
	_, err := fmt.Fprintf(w, "employee %.1f  supervisor %.1f  final %.1f  grade %s (%s)\n",
		result.EmployeeScore, result.SupervisorScore, result.FinalScore, result.Grade, result.GradeLabel)
	return err
}
