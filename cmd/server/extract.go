package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/source"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract audio from one URL in the foreground",
		Long: "Run a single job to completion without the API, store or queue and\n" +
			"print the final job as JSON. Retries follow the configured policy.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if err := source.ValidateURL(args[0]); err != nil {
				return err
			}
			f, err := extraction.ParseFormat(format)
			if err != nil {
				return err
			}

			// stdout carries the result
			log := logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel), "auddy")
			a, err := newApp(cmd.Context(), cfg, log, appOptions{memoryOnly: true})
			if err != nil {
				return err
			}
			defer a.close()

			job := extraction.NewJob(args[0], f)
			if err := a.repo.Create(cmd.Context(), job); err != nil {
				return err
			}
			if err := a.runner.Run(cmd.Context(), job.ID); err != nil {
				return err
			}

			final, err := a.repo.Get(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(final); err != nil {
				return err
			}
			if final.Status != extraction.StatusCompleted {
				return fmt.Errorf("extraction %s", final.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(extraction.DefaultFormat), "Output audio format (mp3, aac, wav, flac, ogg, m4a)")
	return cmd
}
