package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kozaktomas/face-matcher/internal/report"
)

// printRunSummary renders the final counters as a table followed by the run
// directory location.
func printRunSummary(summary report.Summary, runDir string) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Result", "Photos"})
	tw.AppendRows([]table.Row{
		{"Matched", summary.Counters.Matched},
		{"Almost matched", summary.Counters.AlmostMatched},
		{"Not matched", summary.Counters.NotMatched},
		{"Errors", summary.Counters.Errors},
	})
	tw.AppendFooter(table.Row{"Processed", summary.Counters.Processed})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	fmt.Println(tw.Render())
	fmt.Printf("Duration: %.1fs", summary.DurationSeconds)
	if summary.PhotosPerSecond > 0 {
		fmt.Printf(" (%s photos/s)", strconv.FormatFloat(summary.PhotosPerSecond, 'f', 1, 64))
	}
	fmt.Printf("\nResults written to %s\n", runDir)
}
