package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/doubloon-app/doubloon/cmd/api"
)

func newClassifyCommand() *cobra.Command {
	var userName string
	var limit int

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify unclassified transactions with Gemini",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			deps, err := api.InitDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Cleanup()

			var userIDs []uuid.UUID
			if userName != "" {
				u, err := deps.UserRepo.GetByName(cmd.Context(), userName)
				if err != nil {
					return fmt.Errorf("failed to resolve user %q: %w", userName, err)
				}
				userIDs = []uuid.UUID{u.ID}
			} else {
				members, err := deps.UserRepo.ListUsers(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list members: %w", err)
				}
				for _, m := range members {
					userIDs = append(userIDs, m.ID)
				}
			}

			result, err := deps.ClassifyService.Run(cmd.Context(), userIDs, limit)
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}

			logger.Info("classification finished",
				"scanned", result.Scanned,
				"classified", result.Classified,
				"failed", result.Failed,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&userName, "user", "", "only classify this member's transactions")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum transactions per run")

	return cmd
}
