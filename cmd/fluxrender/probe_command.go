package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fluxrender/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe SOURCE",
		Short: "Show duration, geometry and streams of a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := ffprobe.Inspect(cmd.Context(), cfg.FFmpeg.FFprobeBinary, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProbe(args[0], result))
			return nil
		},
	}
}

func renderProbe(path string, result ffprobe.Result) string {
	rows := [][]string{
		{"Path", path},
		{"Container", result.Format.FormatName},
		{"Duration", formatClock(result.DurationSeconds())},
	}
	if video, ok := result.VideoStream(); ok {
		rows = append(rows,
			[]string{"Video", fmt.Sprintf("%s %dx%d", video.CodecName, video.Width, video.Height)},
			[]string{"Frame rate", strconv.FormatFloat(video.FrameRate(), 'f', 3, 64)},
		)
	} else {
		rows = append(rows, []string{"Video", "none"})
	}
	rows = append(rows, []string{"Audio streams", strconv.Itoa(result.AudioStreamCount())})
	if size := result.SizeBytes(); size > 0 {
		rows = append(rows, []string{"Size", humanize.Bytes(uint64(size))})
	}
	if br := result.BitRate(); br > 0 {
		rows = append(rows, []string{"Bitrate", humanize.SIWithDigits(float64(br), 1, "b/s")})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
