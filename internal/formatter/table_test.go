package formatter

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_Rows(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "STATE", "COUNT", "CORPUS")
	tbl.AddRow("added", "3", "gt-bible")
	tbl.AddRow("unchanged", "1204", "gt-news")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"STATE", "COUNT", "CORPUS", "added", "unchanged", "gt-news"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
	// header, rule, 2 data rows
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
}

func TestTable_NoRowsNoOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTable(&buf, "STATE", "COUNT").Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output for table with no rows, got:\n%s", buf.String())
	}
}

func TestTable_Truncate(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		in      string
		want    string
		notWant string
	}{
		{"ellipsis", 8, "Hx3fq9ZkLm2p", "Hx3fq...", "Hx3fq9ZkLm2p"},
		{"tiny limit has no ellipsis", 2, "Hx3fq9", "Hx", "..."},
		{"exactly at limit", 5, "Hx3fq", "Hx3fq", "..."},
		{"runes not bytes", 4, "čđŋšŧž", "č...", "čđŋšŧž"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tbl := NewTable(&buf, "ID", "STATE").SetMaxWidth(0, tt.max)
			tbl.AddRow(tt.in, "added")
			if err := tbl.Render(); err != nil {
				t.Fatalf("Render: %v", err)
			}
			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, out)
			}
			if strings.Contains(out, tt.notWant) {
				t.Errorf("unexpected %q in output:\n%s", tt.notWant, out)
			}
		})
	}
}

func TestTable_MissingValues(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "A", "B", "C")
	tbl.AddRow("only-one")
	tbl.AddRow("x", "y", "z", "ignored")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "only-one") {
		t.Errorf("expected value in output:\n%s", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("extra values should be dropped:\n%s", out)
	}
}

func TestTable_HeaderRule(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "SHORT", "LONGHEADER")
	tbl.AddRow("x", "y")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	rule := strings.TrimSpace(lines[1])
	if rule == "" || strings.Trim(rule, "-") != "" {
		t.Errorf("second line should be a dashed rule, got %q", lines[1])
	}
	if len(rule) < len("SHORT")+len("LONGHEADER") {
		t.Errorf("rule %q shorter than the headers", rule)
	}
	for _, l := range lines {
		if strings.HasSuffix(l, " ") {
			t.Errorf("trailing blanks in %q", l)
		}
	}
}

func TestTable_HeadersKeepCase(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "State")
	tbl.AddRow("added")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "State") {
		t.Errorf("header case changed:\n%s", buf.String())
	}
}

func TestTable_AlignRight(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "STATE", "COUNT").AlignRight(1)
	tbl.AddRow("added", "3")
	tbl.AddRow("unchanged", "1204")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if !strings.HasSuffix(lines[2], "    3") {
		t.Errorf("count should be right-aligned: %q", lines[2])
	}
}
