package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"appraisal/internal/domain/scoring"
)

func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	var employee, supervisor string
	cmd := &cobra.Command{
		Use:     "score",
		Short:   "Compute scores for rating symbols without touching storage",
		Example: "  appraisalctl score --employee EP,SP,AP,SP,EP --supervisor SP,SP,AP,NIP,SP",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			scoringCfg, err := scoring.LoadConfig(rootOpts.Config().ScoringConfigPath)
			if err != nil {
				return err
			}
			engine, err := scoring.NewEngine(scoringCfg)
			if err != nil {
				return err
			}

			employeeRatings := splitRatings(employee)
			supervisorRatings := splitRatings(supervisor)
			for _, symbol := range append(append([]string{}, employeeRatings...), supervisorRatings...) {
				if symbol != "" && !engine.Known(symbol) {
					return fmt.Errorf("unknown rating %q: must be one of %s", symbol, strings.Join(scoringCfg.Symbols(), ", "))
				}
			}
			out.VerboseLog("employee ratings %v, supervisor ratings %v", employeeRatings, supervisorRatings)

			result := engine.Compute(employeeRatings, supervisorRatings)
			return out.Emit(result, func(w io.Writer) error {
				return writeScore(w, result)
			})
		},
	}
	cmd.Flags().StringVar(&employee, "employee", "", "comma separated employee ratings")
	cmd.Flags().StringVar(&supervisor, "supervisor", "", "comma separated supervisor ratings")
	return cmd
}

func splitRatings(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToUpper(strings.TrimSpace(part)))
	}
	return out
}
