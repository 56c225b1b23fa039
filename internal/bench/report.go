package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/rbslot/pkg/config"
	"github.com/Sumatoshi-tech/rbslot/pkg/slotpool"
)

// ErrUnknownFormat is returned by Write for unsupported formats.
var ErrUnknownFormat = errors.New("unknown report format")

// Report is the outcome of a Run.
type Report struct {
	Order     string   `json:"order"      yaml:"order"`
	Results   []Result `json:"results"    yaml:"results"`
	Count     int      `json:"count"      yaml:"count"`
	BlockSize int      `json:"block_size" yaml:"block_size"`
	Seed      int64    `json:"seed"       yaml:"seed"`
	Sparse    bool     `json:"sparse"     yaml:"sparse"`
}

// Result holds the measurements of a single target.
type Result struct {
	Pool     *slotpool.Stats `json:"pool,omitempty"     yaml:"pool,omitempty"`
	Verified *bool           `json:"verified,omitempty" yaml:"verified,omitempty"`
	Target   string          `json:"target"             yaml:"target"`
	Phases   []PhaseResult   `json:"phases"             yaml:"phases"`
	Len      int             `json:"len"                yaml:"len"`
}

// PhaseResult holds the timing of one phase.
type PhaseResult struct {
	Phase   string  `json:"phase"     yaml:"phase"`
	Ops     int     `json:"ops"       yaml:"ops"`
	Hits    int     `json:"hits"      yaml:"hits"`
	Seconds float64 `json:"seconds"   yaml:"seconds"`
	NsPerOp float64 `json:"ns_per_op" yaml:"ns_per_op"`
}

func newPhaseResult(phase string, ops, hits int, elapsed time.Duration) *PhaseResult {
	nsPerOp := 0.0
	if ops > 0 {
		nsPerOp = float64(elapsed.Nanoseconds()) / float64(ops)
	}

	return &PhaseResult{
		Phase:   phase,
		Ops:     ops,
		Hits:    hits,
		Seconds: elapsed.Seconds(),
		NsPerOp: nsPerOp,
	}
}

// Write renders report to w in the given format.
func Write(w io.Writer, format string, report *Report) error {
	switch format {
	case config.FormatText:
		return WriteText(w, report)
	case config.FormatJSON:
		return WriteJSON(w, report)
	case config.FormatYAML:
		return WriteYAML(w, report)
	case config.FormatHTML:
		return WriteHTML(w, report)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteText renders report as a table followed by allocator and verification notes.
func WriteText(w io.Writer, report *Report) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("%s keys, %s order, sparse=%t, seed=%d",
		humanize.Comma(int64(report.Count)), report.Order, report.Sparse, report.Seed)
	tbl.AppendHeader(table.Row{"Target", "Phase", "Ops", "Hits", "Time", "ns/op"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	for _, result := range report.Results {
		for _, phase := range result.Phases {
			tbl.AppendRow(table.Row{
				result.Target,
				phase.Phase,
				humanize.Comma(int64(phase.Ops)),
				humanize.Comma(int64(phase.Hits)),
				time.Duration(phase.Seconds * float64(time.Second)).Round(time.Microsecond),
				humanize.FormatFloat("#,###.##", phase.NsPerOp),
			})
		}

		tbl.AppendSeparator()
	}

	tbl.Render()

	for _, result := range report.Results {
		if result.Pool != nil {
			fmt.Fprintf(w, "%s: %d blocks of %s, %s slots carved\n",
				result.Target,
				result.Pool.Blocks,
				humanize.IBytes(uint64(result.Pool.BlockSize)), //nolint:gosec // block size is positive.
				humanize.Comma(int64(result.Pool.Carved)),
			)
		}

		if result.Verified == nil {
			continue
		}

		if *result.Verified {
			color.New(color.FgGreen).Fprintf(w, "%s: invariants hold\n", result.Target)
		} else {
			color.New(color.FgRed).Fprintf(w, "%s: invariants violated\n", result.Target)
		}
	}

	return nil
}

// WriteJSON renders report as indented JSON.
func WriteJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(report)
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

// WriteYAML renders report as YAML.
func WriteYAML(w io.Writer, report *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(report)
	if err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	return enc.Close()
}

// WriteHTML renders report as a page with one ns/op bar chart per phase.
func WriteHTML(w io.Writer, report *Report) error {
	page := components.NewPage()
	page.PageTitle = "rbslot benchmark"

	for _, phase := range []string{PhaseInsert, PhaseFind, PhaseErase} {
		page.AddCharts(phaseChart(report, phase))
	}

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}

func phaseChart(report *Report, phase string) *charts.Bar {
	labels := make([]string, 0, len(report.Results))
	data := make([]opts.BarData, 0, len(report.Results))

	for _, result := range report.Results {
		for _, pr := range result.Phases {
			if pr.Phase != phase {
				continue
			}

			labels = append(labels, result.Target)
			data = append(data, opts.BarData{Value: pr.NsPerOp})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    phase,
			Subtitle: fmt.Sprintf("%s keys, %s order", humanize.Comma(int64(report.Count)), report.Order),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ns/op"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("ns/op", data)

	return bar
}
