package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fluxrender/internal/frame"
	"fluxrender/internal/render"
)

func newFiltersCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "filters",
		Short:       "List frame filters and output resolutions",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			title := cases.Title(language.Und)
			rows := make([][]string, 0, len(frame.Filters()))
			for _, d := range frame.Filters() {
				name := title.String(strings.ReplaceAll(string(d.ID), "-", " "))
				rows = append(rows, []string{string(d.ID), name, d.Alias, d.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Alias", "Description"}, rows, nil))

			resRows := make([][]string, 0, 3)
			for _, r := range render.Resolutions() {
				w, h := r.Dimensions()
				resRows = append(resRows, []string{string(r), r.Label(), fmt.Sprintf("%dx%d", w, h), fmt.Sprintf("%d Mb/s", r.Bitrate()/1_000_000)})
			}
			fmt.Fprintln(out, renderTable([]string{"Resolution", "Label", "Size", "Bitrate"}, resRows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}
