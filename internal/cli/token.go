package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"appraisal/internal/domain/auth"
)

func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var userID, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			signed, err := auth.GenerateToken(rootOpts.Config().JWTSecret, auth.Claims{UserID: userID, RoleName: role}, ttl)
			if err != nil {
				return err
			}
			out := formatter(rootOpts, cmd)
			return out.Emit(map[string]any{"token": signed, "expiresIn": ttl.String()}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, signed)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "staff id the token is issued to")
	cmd.Flags().StringVar(&role, "role", auth.RoleStaff, "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
