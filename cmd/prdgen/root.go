package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/prdgen/internal/config"
	"github.com/phrazzld/prdgen/internal/platform/logger"
	"github.com/spf13/cobra"
)

// appBuilder wires an application from loaded configuration.
type appBuilder func(cfg *config.Config, logger *slog.Logger) (*application, error)

// cliState is shared by every subcommand of one invocation.
type cliState struct {
	configPath string
	logLevel   string
	build      appBuilder
	app        *application
}

func newRootCmd(build appBuilder) *cobra.Command {
	state := &cliState{build: build}

	root := &cobra.Command{
		Use:           "prdgen",
		Short:         "Generate Product Requirements Documents with Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "", "config file (default: ./prdgen.{yaml,toml,json} if present)")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	root.AddCommand(
		newServeCmd(state),
		newGenerateCmd(state),
		newExportCmd(state),
		newAuthCmd(state),
	)
	return root
}

// init loads configuration, sets up logging and wires the application.
func (s *cliState) init(cmd *cobra.Command) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if s.logLevel != "" {
		cfg.Log.Level = s.logLevel
	}

	log, err := logger.Setup(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Debug("configuration loaded",
		"model", cfg.LLM.ModelName,
		"gemini_api_key_present", cfg.LLM.GeminiAPIKey != "",
		"token_file", cfg.Docs.TokenFile)

	s.app, err = s.build(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return nil
}
