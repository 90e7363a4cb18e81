package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"fluxrender/internal/render"
	"fluxrender/internal/services"
	"fluxrender/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	var clean bool
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "staging",
		Short: "List or remove render scratch directories left by interrupted runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if clean {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				lock := flock.New(cfg.LockPath())
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire render lock: %w", err)
				}
				if !locked {
					return services.Wrap(services.ErrValidation, "cli", "staging clean", "a render is running", render.ErrConcurrentRender)
				}
				defer func() { _ = lock.Unlock() }()

				result := staging.CleanOlderThan(cfg.Paths.StagingDir, olderThan, logger)
				fmt.Fprintf(out, "Removed %d directories\n", len(result.Removed))
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d directories could not be removed: %w", len(result.Errors), result.Errors[0].Error)
				}
				return nil
			}

			dirs, err := staging.List(cfg.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No leftover render directories")
				return nil
			}
			var total int64
			rows := make([][]string, 0, len(dirs))
			for _, d := range dirs {
				total += d.Size
				rows = append(rows, []string{d.Name, humanize.Time(d.ModTime), humanize.Bytes(uint64(d.Size))})
			}
			fmt.Fprintf(out, "Staging directory: %s\n", cfg.Paths.StagingDir)
			fmt.Fprintln(out, renderTable([]string{"Directory", "Modified", "Size"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "Total: %d directories, %s\n", len(dirs), humanize.Bytes(uint64(total)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove the listed directories")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "With --clean, only remove directories older than this")
	return cmd
}
