package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/doubloon-app/doubloon/cmd/api"
)

func newImportCommand() *cobra.Command {
	var providerName, userName string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a bank statement file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			deps, err := api.InitDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Cleanup()

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			u, err := deps.UserRepo.GetOrCreateByName(cmd.Context(), userName)
			if err != nil {
				return fmt.Errorf("failed to resolve user %q: %w", userName, err)
			}

			result, err := deps.ImportService.ImportFile(
				cmd.Context(), u.ID, providerName, filepath.Base(path), data)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			logger.Info("import finished",
				"job_id", result.JobID,
				"rows_read", result.RowsRead,
				"rows_imported", result.RowsImported,
				"rows_duplicate", result.RowsDuplicate,
				"rows_skipped", result.RowsSkipped,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "intesa_excel", "statement provider")
	cmd.Flags().StringVar(&userName, "user", "", "member the statement belongs to")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
