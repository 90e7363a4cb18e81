package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fluxrender/internal/deps"
	"fluxrender/internal/preflight"
	"fluxrender/internal/services"
	"fluxrender/internal/sink"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg, ffprobe and the available output formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ok"
				if !s.Available {
					state = "missing"
				}
				rows = append(rows, []string{s.Name, s.Command, state, s.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "Status", "Detail"}, rows, nil))

			checks := preflight.RunAll(cfg)
			hostRows := make([][]string, 0, len(checks))
			for _, c := range checks {
				hostRows = append(hostRows, []string{c.Name, passLabel(c.Passed), c.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, hostRows, nil))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				names := make([]string, len(missing))
				for i, m := range missing {
					names[i] = m.Command
				}
				return services.Wrap(services.ErrExternalTool, "cli", "deps", "missing "+strings.Join(names, ", "), nil)
			}

			encoder := sink.NewEncoder(sink.Options{FFmpegBinary: cfg.FFmpeg.FFmpegBinary})
			formats, err := encoder.Formats(cmd.Context())
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "cli", "deps", "list encoders", err)
			}
			if err := printFormats(cmd, formats); err != nil {
				return err
			}
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return services.Wrap(services.ErrConfiguration, "cli", "deps", failed[0].Name+": "+failed[0].Detail, nil)
			}
			return nil
		},
	}
}

func printFormats(cmd *cobra.Command, available []sink.Format) error {
	usable := make(map[string]bool, len(available))
	for _, f := range available {
		usable[f.MIMEType] = true
	}
	rows := make([][]string, 0, len(sink.Preferences))
	for i, f := range sink.Preferences {
		rows = append(rows, []string{fmt.Sprint(i + 1), f.MIMEType, f.VideoCodec, f.AudioCodec, yesNo(usable[f.MIMEType])})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"#", "Format", "Video", "Audio", "Usable"}, rows, []columnAlignment{alignRight}))
	if len(available) == 0 {
		return services.Wrap(services.ErrExternalTool, "cli", "deps", "ffmpeg has none of the supported video encoders", sink.ErrEncoderUnsupported)
	}
	fmt.Fprintf(out, "Renders will use %s\n", available[0].MIMEType)
	return nil
}

func passLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
