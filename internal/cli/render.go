package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"claudehist/internal/pipeline"
	"claudehist/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// RenderSummary writes the end-of-run per-source table plus aggregate
// totals. With styled unset (piped output) it emits tab-separated plain
// text instead.
func RenderSummary(w io.Writer, s *pipeline.Summary, styled bool) {
	if !styled {
		fmt.Fprintln(w, "source\tfiles\trecords\terrors\tduration\tstatus")
		for _, r := range s.Results {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n",
				r.Source, r.FilesProcessed, r.RecordsInserted, r.ErrorsCount,
				FormatDuration(r.Duration), r.Status())
		}
		fmt.Fprintf(w, "total\t%d\t%d\t%d\n", s.TotalFiles, s.TotalRecords, s.TotalErrors)
		return
	}

	title := "Sync complete"
	if s.DryRun {
		title = "Dry run (no data committed)"
	}
	fmt.Fprintln(w, headerStyle.Render(title))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Source", "Files", "Records", "Errors", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	for _, r := range s.Results {
		status := okStyle.Render(r.Status())
		if r.ErrorsCount > 0 {
			status = warnStyle.Render(r.Status())
		}
		t.AppendRow(table.Row{
			r.Source, r.FilesProcessed, FormatNumber(int64(r.RecordsInserted)),
			r.ErrorsCount, FormatDuration(r.Duration), status,
		})
	}
	t.AppendFooter(table.Row{
		"total", s.TotalFiles, FormatNumber(int64(s.TotalRecords)), s.TotalErrors, "", "",
	})
	t.Render()
}

// RenderRuns writes recent run-log rows.
func RenderRuns(w io.Writer, rows []store.Row, styled bool) {
	if !styled {
		fmt.Fprintln(w, "run\tsource\tfiles\trecords\terrors\tseconds\tstatus")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.1f\t%s\n",
				r.String("run_timestamp"), r.String("source"),
				r.Int64("files_processed"), r.Int64("records_inserted"),
				r.Int64("errors_count"), r.Float64("duration_seconds"),
				r.String("status"))
		}
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run", "Source", "Files", "Records", "Errors", "Seconds", "Status"})

	for _, r := range rows {
		t.AppendRow(table.Row{
			r.String("run_timestamp"), r.String("source"),
			r.Int64("files_processed"),
			FormatNumber(r.Int64("records_inserted")),
			r.Int64("errors_count"),
			fmt.Sprintf("%.1f", r.Float64("duration_seconds")),
			r.String("status"),
		})
	}
	t.Render()
}

// RenderStats writes per-table row counts.
func RenderStats(w io.Writer, tables []string, counts map[string]int64, styled bool) {
	if !styled {
		for _, name := range tables {
			fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
		}
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Table", "Rows"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	for _, name := range tables {
		t.AppendRow(table.Row{name, FormatNumber(counts[name])})
	}
	t.Render()
}
