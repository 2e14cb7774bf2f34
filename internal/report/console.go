package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	passStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("196")).Bold(true)
	sepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RenderTable renders verdicts as an aligned console table.
func RenderTable(verdicts []Verdict) string {
	if len(verdicts) == 0 {
		return ""
	}
	headers := []string{"Suite", "Device", "Metric", "Min %", "Mean %", "Max %", "Corners", "Verdict"}
	rows := make([][]string, 0, len(verdicts))
	for _, v := range verdicts {
		rows = append(rows, []string{
			v.Suite, v.Device, v.Metric,
			fmt.Sprintf("%.2f", v.Min), fmt.Sprintf("%.2f", v.Mean), fmt.Sprintf("%.2f", v.Max),
			fmt.Sprintf("%d/%d", v.Groups, v.Expected),
			v.Status(),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2 // padding
	}

	var sb strings.Builder
	sep := sepStyle.Render("|")
	for i, h := range headers {
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
		if i < len(headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")
	for i := range headers {
		sb.WriteString(sepStyle.Render(strings.Repeat("-", widths[i])))
		if i < len(headers)-1 {
			sb.WriteString(sepStyle.Render("+"))
		}
	}
	sb.WriteString("\n")

	for r, row := range rows {
		for i, cell := range row {
			style := cellStyle
			if i == len(row)-1 {
				style = failStyle
				if verdicts[r].Pass {
					style = passStyle
				}
			}
			sb.WriteString(style.Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
