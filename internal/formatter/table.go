package formatter

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table formats columnar output with a dashed header rule and no borders.
type Table struct {
	w        io.Writer
	tw       table.Writer
	headers  []string
	maxWidth map[int]int // column index -> max width (0 = unlimited)
	rows     int
}

// NewTable creates a table that writes to w with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	tw := table.NewWriter()
	style := table.StyleDefault
	style.Options = table.Options{SeparateHeader: true}
	style.Box.PaddingLeft = ""
	style.Box.PaddingRight = "  "
	style.Box.MiddleHorizontal = "-"
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	tw.AppendHeader(row)
	return &Table{w: w, tw: tw, headers: headers, maxWidth: make(map[int]int)}
}

// SetMaxWidth sets the maximum display width for a column (0-indexed).
// Values exceeding the limit are truncated with "...".
func (t *Table) SetMaxWidth(col, width int) *Table {
	t.maxWidth[col] = width
	return t
}

// AlignRight right-aligns a column (0-indexed), for counts.
func (t *Table) AlignRight(cols ...int) *Table {
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		configs[i] = table.ColumnConfig{Number: c + 1, Align: text.AlignRight}
	}
	t.tw.SetColumnConfigs(configs)
	return t
}

// AddRow appends a data row. Extra values beyond the header count are ignored;
// missing values are filled with empty strings.
func (t *Table) AddRow(values ...string) {
	row := make(table.Row, len(t.headers))
	for i := range row {
		cell := ""
		if i < len(values) {
			cell = t.truncate(i, values[i])
		}
		row[i] = cell
	}
	t.tw.AppendRow(row)
	t.rows++
}

// Render writes the table. A table without rows writes nothing.
func (t *Table) Render() error {
	if t.rows == 0 {
		return nil
	}
	out := t.tw.Render()
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	_, err := io.WriteString(t.w, strings.Join(lines, "\n")+"\n")
	return err
}

func (t *Table) truncate(col int, s string) string {
	max, ok := t.maxWidth[col]
	r := []rune(s)
	if !ok || max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
