package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"appraisal/internal/app/server"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the configured store's schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config()
			cfg.RunMigrations = true
			out := formatter(rootOpts, cmd)
			out.VerboseLog("migrating %s store", cfg.StoreDriver)

			store, closeStore, err := server.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer closeStore()
			if err := store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return out.Emit(map[string]string{"store": cfg.StoreDriver, "schema": "current"}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s schema is current\n", cfg.StoreDriver)
				return err
			})
		},
	}
}
