package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FormatHeader formats a markdown header at the given level.
func FormatHeader(level int, text string) string {
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue formats a markdown key/value line.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// TaskRow is one row of a task summary table.
type TaskRow struct {
	Task     string
	Status   string
	Duration string
	Detail   string
}

// RenderTaskTable writes task rows as a bordered table (text mode) or a
// markdown table.
func (r *Renderer) RenderTaskTable(rows []TaskRow) {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, []string{row.Task, row.Status, row.Duration, row.Detail})
	}
	r.RenderTable([]string{"Task", "Status", "Duration", "Detail"}, cells)
}

// RenderTable writes arbitrary rows as a bordered table (text mode) or a
// markdown table.
func (r *Renderer) RenderTable(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	h := make(table.Row, len(header))
	for i, col := range header {
		h[i] = col
	}
	t.AppendHeader(h)

	for _, row := range rows {
		cells := make(table.Row, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		t.AppendRow(cells)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
