package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doubloon-app/doubloon/cmd/api"
)

func newSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Run migrations, seed default categories and register household members",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Auth.Members) == 0 {
				return fmt.Errorf("MEMBERS is empty, set it to \"name:secret,name:secret\"")
			}

			deps, err := api.InitDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Cleanup()

			for name := range cfg.Auth.Members {
				u, err := deps.UserRepo.GetOrCreateByName(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("failed to register member %q: %w", name, err)
				}
				logger.Info("member ready", "name", u.Name, "id", u.ID)
			}

			logger.Info("setup completed")
			return nil
		},
	}
}
