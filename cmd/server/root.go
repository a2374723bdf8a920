package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/auddy/backend/internal/config"
	"github.com/auddy/backend/internal/logger"
)

type commandContext struct {
	configPath string
	cfg        *config.Config
	log        *logger.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := c.configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.log = logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "auddy")
	logger.SetDefault(c.log)
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "auddy",
		Short:         "Audio extraction service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (overrides CONFIG_FILE)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newExtractCommand(ctx))

	return rootCmd
}
