package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fluxrender/internal/editing"
	"fluxrender/internal/logging"
	"fluxrender/internal/preflight"
	"fluxrender/internal/render"
	"fluxrender/internal/services"
	"fluxrender/internal/sink"
	"fluxrender/internal/source"
	"fluxrender/internal/staging"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var segments []string
	var filter, resolution, outputDir string
	var speed float64
	var noAudio bool

	cmd := &cobra.Command{
		Use:   "render SOURCE",
		Short: "Render marked cuts of a video into one file",
		Long: "Render plays SOURCE through each --segment in order, applies the frame filter and\n" +
			"writes the result to the output directory. Without --segment the whole file is rendered.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ranges, err := parseSegmentFlags(segments)
			if err != nil {
				return err
			}

			opts := editing.OptionsFromConfig(cfg)
			flags := cmd.Flags()
			if flags.Changed("filter") {
				opts.Filter = filter
			}
			if flags.Changed("resolution") {
				opts.Resolution = resolution
			}
			if flags.Changed("speed") {
				opts.PlaybackSpeed = speed
			}
			if noAudio {
				opts.Audio = false
			}
			dest := cfg.Paths.OutputDir
			if strings.TrimSpace(outputDir) != "" {
				dest = outputDir
			}

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
				return services.Wrap(services.ErrValidation, "cli", "render",
					fmt.Sprintf("another fluxrender process holds %s", cfg.LockPath()), render.ErrConcurrentRender)
			}
			defer func() { _ = lock.Unlock() }()
			// Holding the lock means any session directory left behind is dead.
			staging.CleanOlderThan(cfg.Paths.StagingDir, 0, logger)
			for _, check := range preflight.Failed(preflight.RunAll(cfg)) {
				logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", check.Name),
					logging.String("detail", check.Detail),
					logging.String(logging.FieldImpact, "the render may fail or be incomplete"),
				)
			}

			runCtx := services.WithRequestID(cmd.Context(), uuid.NewString())
			reporter := newProgressReporter(cmd.ErrOrStderr(), isInteractive(cmd.ErrOrStderr()))

			handle := source.NewHandle(source.Options{
				FFprobeBinary: cfg.FFmpeg.FFprobeBinary,
				FFmpegBinary:  cfg.FFmpeg.FFmpegBinary,
				SeekTimeout:   time.Duration(cfg.Render.SeekTimeoutSeconds) * time.Second,
				Logger:        logger,
			})
			encoder := sink.NewEncoder(sink.Options{
				FFmpegBinary: cfg.FFmpeg.FFmpegBinary,
				StagingDir:   cfg.Paths.StagingDir,
				Logger:       logger,
			})
			session := editing.NewSession(handle, encoder, editing.SessionOptions{
				Logger:    logger,
				Sequencer: render.Options{OnProgress: reporter.update},
			})
			defer session.Close()

			info, err := session.Load(runCtx, args[0])
			if err != nil {
				return err
			}
			for _, r := range ranges {
				if _, err := session.MarkLabeled(r.start, r.end, r.label); err != nil {
					return err
				}
			}
			logging.WithContext(runCtx, logger).Info("render requested",
				logging.String("source", info.Path),
				logging.Int("segments", len(ranges)),
				logging.Float64("total_seconds", session.TotalDuration()),
			)

			started := time.Now()
			artifact, err := session.Render(runCtx, opts)
			reporter.finish()
			if err != nil {
				return err
			}
			path, err := session.Save(artifact, dest)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rendered %s\n", path)
			fmt.Fprintf(out, "  %s, %s, %d frames, audio %s, took %s\n",
				artifact.MIMEType,
				humanize.Bytes(uint64(len(artifact.Data))),
				artifact.Frames,
				yesNo(artifact.HasAudio),
				time.Since(started).Round(time.Second),
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&segments, "segment", "s", nil, "Cut to render as START:END seconds or START-END clock time; repeat in render order")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Frame filter (see `fluxrender filters`)")
	cmd.Flags().StringVarP(&resolution, "resolution", "r", "", "Output size: low, standard or high")
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed multiplier")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the rendered file (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "Render without the source audio track")
	return cmd
}
