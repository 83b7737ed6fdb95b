package formatter

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/runner"
)

// previewWidth caps the final output column of the entry table.
const previewWidth = 60

// WritePage renders the counts and entries of a review page as tables.
func WritePage(w io.Writer, page *review.Page) error {
	c := page.Counts
	//nolint:errcheck // CLI output
	fmt.Fprintf(w, "Test %s, corpora %s, page %d/%d\n\n",
		page.Test, strings.Join(page.Corpora, ", "), c.Page+1, max(c.Pages, 1))

	counts := NewTable(w, "STATE", "COUNT").AlignRight(1)
	for _, row := range []struct {
		state review.State
		n     int
	}{
		{review.StateAdded, c.Added},
		{review.StateDeleted, c.Deleted},
		{review.StateMissing, c.Missing},
		{review.StateChangedFinal, c.ChangedFinal},
		{review.StateChangedAny, c.ChangedAny},
		{review.StateGolden, c.Golden},
		{review.StateUnchanged, c.Unchanged},
	} {
		counts.AddRow(string(row.state), strconv.Itoa(row.n))
	}
	counts.AddRow("total", strconv.Itoa(c.Total))
	if err := counts.Render(); err != nil {
		return err
	}

	entries := NewTable(w, "STATE", "ID", "CORPORA", "GOLD", "CHANGE", "FINAL").
		SetMaxWidth(1, 16).
		SetMaxWidth(5, previewWidth)
	for _, st := range review.States {
		for _, e := range page.Results[st] {
			entries.AddRow(string(e.State), e.ID, corporaCell(e.Corpora), goldCell(e.GoldStatus),
				stageCell(page.Stages, e.ChangePoint), oneLine(e.Final()))
		}
	}
	//nolint:errcheck // CLI output
	fmt.Fprintln(w)
	return entries.Render()
}

// WriteReport renders a run report.
func WriteReport(w io.Writer, r *runner.Report) error {
	tbl := NewTable(w, "RUN", "UNIQUE", "SEEN", "WORKERS", "ELAPSED").AlignRight(1, 2, 3)
	tbl.AddRow(r.RunID, strconv.Itoa(r.Unique), strconv.Itoa(r.Seen),
		strconv.Itoa(r.Workers), r.Elapsed.Round(time.Millisecond).String())
	if err := tbl.Render(); err != nil {
		return err
	}
	if n := r.Shortfall(); n > 0 {
		//nolint:errcheck // CLI output
		fmt.Fprintf(w, "\nWARNING: %d of %d segments missing from the final output (e.g. %s)\n",
			n, r.Unique, r.ExampleMissing)
	}
	for _, f := range r.Failures {
		//nolint:errcheck // CLI output
		fmt.Fprintf(w, "FAILED: %s\n", f)
	}
	return nil
}

// WriteDiff renders every changed stage of an entry as a unified diff.
func WriteDiff(w io.Writer, e *review.Entry, diffs []review.StageDiff) error {
	if _, err := fmt.Fprintf(w, "%s  %s  gold=%s\n", e.ID, e.State, e.GoldStatus); err != nil {
		return err
	}
	changed := false
	for _, d := range diffs {
		if !d.Changed {
			continue
		}
		changed = true
		if _, err := fmt.Fprintf(w, "--- %s (baseline)\n+++ %s (current)\n%s", d.Stage, d.Stage, review.RenderDiff(d.Lines)); err != nil {
			return err
		}
	}
	if !changed {
		_, err := fmt.Fprintln(w, "no differences")
		return err
	}
	return nil
}

// WriteIDs prints the ids a mutation touched.
func WriteIDs(w io.Writer, verb string, ids []string) error {
	if len(ids) == 0 {
		_, err := fmt.Fprintf(w, "nothing %s\n", verb)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %d: %s\n", verb, len(ids), strings.Join(ids, " "))
	return err
}

// WriteInspect renders the output of every stage of an ad-hoc run.
func WriteInspect(w io.Writer, res *review.InspectResult) error {
	for _, name := range res.Stages {
		out, ok := res.Outputs[name]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "== %s ==\n%s", name, out); err != nil {
			return err
		}
		if !strings.HasSuffix(out, "\n") {
			//nolint:errcheck // CLI output
			fmt.Fprintln(w)
		}
		if e := res.Stderr[name]; e != "" {
			//nolint:errcheck // CLI output
			fmt.Fprintf(w, "-- %s stderr --\n%s\n", name, strings.TrimRight(e, "\n"))
		}
	}
	return nil
}

func corporaCell(m map[string]int) string {
	names := make([]string, 0, len(m))
	for c := range m {
		names = append(names, c)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, c := range names {
		parts[i] = c + ":" + strconv.Itoa(m[c])
	}
	return strings.Join(parts, ",")
}

func goldCell(s review.GoldStatus) string {
	if s == review.GoldNone {
		return "-"
	}
	return string(s)
}

func stageCell(stages []string, i int) string {
	if i < 0 || i >= len(stages) {
		return "-"
	}
	return stages[i]
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
