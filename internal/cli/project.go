package cli

import (
	"github.com/spf13/cobra"

	"sidas/internal/engine"
	"sidas/internal/orchestrator"
	"sidas/internal/project"
)

// openProject loads the project named by --project for the inspection
// commands. Nothing is materialized; the caller closes the project.
func openProject(cmd *cobra.Command) (*project.Project, *orchestrator.Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	eng := engine.NewEngine(engine.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	logger, err := eng.Logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng.Open(cmd.Context(), cfg, logger, orchestrator.Options{})
}
