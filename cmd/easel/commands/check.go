package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/easelkit/easel/internal/config"
	"github.com/easelkit/easel/internal/printer"
	"github.com/easelkit/easel/pkg/backend"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and backend connectivity",
	Long: `Validate the easel.yml configuration file and probe the backend.

Checks performed:
  • Configuration parses and passes validation
  • Backend answers the health endpoint with the configured API key`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	printer.Step("Validating %s\n", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error(
			"Configuration invalid",
			err.Error(),
			[]string{"Fix the reported field and re-run 'easel check'"},
		)
	}
	printer.Success("Configuration valid (worker id: %s)\n", cfg.Worker.ID)

	printer.Step("Probing backend at %s\n", cfg.Backend.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := backend.New(cfg.Backend.URL, cfg.Backend.APIKey).Ping(ctx); err != nil {
		return printer.Error(
			"Backend not reachable",
			err.Error(),
			[]string{
				"Verify backend.url points at the API root",
				"Verify backend.api_key is still valid",
			},
		)
	}
	printer.Success("Backend reachable\n")

	if cfg.Worker.PinnedInstance != "" {
		printer.Warning("Worker is pinned to instance %s; it will never claim another\n", cfg.Worker.PinnedInstance)
	}
	return nil
}
