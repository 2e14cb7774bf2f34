package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"cornersweep/internal/evaluate"
)

// WriteChart writes an HTML bar chart of per-corner errors for one device
// family and metric, with the pass threshold marked.
func WriteChart(path, title string, groups []evaluate.Group, threshold float64) error {
	labels := make([]string, 0, len(groups))
	data := make([]opts.BarData, 0, len(groups))
	for _, g := range groups {
		labels = append(labels, fmt.Sprintf("%s %s", g.Device, g.Corner))
		data = append(data, opts.BarData{Value: g.Error})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("RMS error per corner, threshold %.2f%%", threshold),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
	)
	bar.SetXAxis(labels).AddSeries("error %", data,
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "threshold", YAxis: threshold}),
	)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	if err := bar.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return f.Close()
}
