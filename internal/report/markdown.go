package report

import (
	"cmp"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/tornodes/internal/model"
)

// MarkdownWriter outputs relay statistics in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteStatistics outputs stats as a Markdown report.
func (w *MarkdownWriter) WriteStatistics(stats model.Statistics) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, stats)
	w.writeSummary(md, stats)
	w.writeCountries(md, stats)
	w.writeFlags(md, stats)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the update time.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, stats model.Statistics) {
	md.H1("Tor Relay Statistics")
	md.PlainText("")

	updated := "never"
	if stats.LastUpdated != nil {
		updated = formatUTC(*stats.LastUpdated) + " UTC"
	}
	md.PlainTextf("Last updated: %s", updated)
	md.PlainText("")
}

// writeSummary writes the totals table and the running/offline chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, stats model.Statistics) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total relays", strconv.Itoa(stats.TotalNodes)},
			{"Running", strconv.Itoa(stats.RunningNodes)},
			{"Offline", strconv.Itoa(stats.OfflineNodes)},
			{"Exit relays", strconv.Itoa(stats.ExitNodes)},
			{"Total bandwidth", strconv.FormatInt(stats.TotalBandwidth, 10)},
			{"Countries", strconv.Itoa(stats.CountriesCount)},
		},
	})
	md.PlainText("")

	if stats.TotalNodes == 0 {
		md.Note("The relay set is empty.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Relay Status"),
		piechart.WithShowData(true),
	)
	if stats.RunningNodes > 0 {
		chart.LabelAndIntValue("Running", uint64(stats.RunningNodes))
	}
	if stats.OfflineNodes > 0 {
		chart.LabelAndIntValue("Offline", uint64(stats.OfflineNodes))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeCountries writes the top countries table and chart.
func (w *MarkdownWriter) writeCountries(md *markdown.Markdown, stats model.Statistics) {
	md.H2("Top Countries")
	md.PlainText("")

	if len(stats.TopCountries) == 0 {
		md.PlainText("No country data.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(stats.TopCountries))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Relays by Country"),
		piechart.WithShowData(true),
	)
	for i, c := range stats.TopCountries {
		rows[i] = []string{strconv.Itoa(i + 1), c.Name, "`" + c.Code + "`", strconv.Itoa(c.Count)}
		chart.LabelAndIntValue(c.Name, uint64(c.Count))
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Country", "Code", "Relays"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFlags writes the flag distribution, most frequent first.
func (w *MarkdownWriter) writeFlags(md *markdown.Markdown, stats model.Statistics) {
	md.H2("Flags")
	md.PlainText("")

	if len(stats.FlagsDistribution) == 0 {
		md.PlainText("No flags reported.")
		md.PlainText("")
		return
	}

	flags := make([]string, 0, len(stats.FlagsDistribution))
	for flag := range stats.FlagsDistribution {
		flags = append(flags, flag)
	}
	slices.SortFunc(flags, func(a, b string) int {
		if c := cmp.Compare(stats.FlagsDistribution[b], stats.FlagsDistribution[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	rows := make([][]string, len(flags))
	for i, flag := range flags {
		rows[i] = []string{flag, strconv.Itoa(stats.FlagsDistribution[flag])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Flag", "Relays"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by tornodes from the Onionoo relay summary*")
}

// WriteHistory outputs refresh events as a Markdown table, in the given order.
func (w *MarkdownWriter) WriteHistory(events []model.RefreshEvent) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Refresh History")
	md.PlainText("")

	if len(events) == 0 {
		md.PlainText("No refreshes recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(events))
	for i, e := range events {
		result := "ok"
		if !e.Success {
			result = "failed: " + e.Error
		}
		rows[i] = []string{
			formatUTC(e.StartedAt),
			e.Cache.String(),
			e.Trigger.String(),
			e.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(e.ItemCount),
			result,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Started (UTC)", "Cache", "Trigger", "Duration", "Items", "Result"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}
