package review

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineOp marks a diff line.
type LineOp string

const (
	LineSame    LineOp = " "
	LineRemoved LineOp = "-"
	LineAdded   LineOp = "+"
)

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Op   LineOp `json:"op"`
	Text string `json:"text"`
}

// StageDiff compares one stage of an entry.
type StageDiff struct {
	Stage   string     `json:"stage"`
	Changed bool       `json:"changed"`
	Lines   []DiffLine `json:"lines,omitempty"`
}

// LineDiff compares baseline with current line by line.
func LineDiff(baseline, current string) []DiffLine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(baseline, current)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		op := LineSame
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = LineRemoved
		case diffmatchpatch.DiffInsert:
			op = LineAdded
		}
		if d.Text == "" {
			continue
		}
		for _, l := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, DiffLine{Op: op, Text: l})
		}
	}
	return out
}

// DiffEntry compares every stage of e with its baseline.
func DiffEntry(e *Entry, stages []string) []StageDiff {
	out := make([]StageDiff, 0, len(stages))
	for i, name := range stages {
		if i >= len(e.Current) {
			break
		}
		sd := StageDiff{Stage: name, Changed: e.Current[i] != e.Baseline[i]}
		if sd.Changed {
			sd.Lines = LineDiff(e.Baseline[i], e.Current[i])
		}
		out = append(out, sd)
	}
	return out
}

// RenderDiff formats lines as a unified diff body.
func RenderDiff(lines []DiffLine) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(string(l.Op))
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
