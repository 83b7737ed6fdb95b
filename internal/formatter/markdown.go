package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/boshu2/regtest/internal/review"
)

// MarkdownFormatter outputs a review page as a markdown report, with a diff
// block for every changed entry.
type MarkdownFormatter struct {
	// MaxDiffs caps the number of diff sections; 0 means no limit.
	MaxDiffs int
}

// NewMarkdownFormatter creates a markdown formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{MaxDiffs: 50}
}

// Extension returns the file extension for markdown.
func (mf *MarkdownFormatter) Extension() string {
	return ".md"
}

type templateData struct {
	Test    string
	Corpora []string
	Counts  review.Counts
	Page    int // 1-based
	Lists   []idList
	Diffs   []entryDiff
	Omitted int
}

type idList struct {
	Title string
	IDs   []string
}

type entryDiff struct {
	ID    string
	State review.State
	Stage string
	Body  string
}

// Format writes page as markdown.
func (mf *MarkdownFormatter) Format(w io.Writer, page *review.Page) error {
	tmpl, err := template.New("review").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, mf.buildTemplateData(page))
}

func (mf *MarkdownFormatter) buildTemplateData(page *review.Page) *templateData {
	data := &templateData{Test: page.Test, Corpora: page.Corpora, Counts: page.Counts, Page: page.Counts.Page + 1}
	for _, st := range []review.State{review.StateAdded, review.StateDeleted, review.StateMissing} {
		if es := page.Results[st]; len(es) > 0 {
			l := idList{Title: string(st)}
			for _, e := range es {
				l.IDs = append(l.IDs, e.ID)
			}
			data.Lists = append(data.Lists, l)
		}
	}
	for _, st := range []review.State{review.StateChangedFinal, review.StateChangedAny} {
		for _, e := range page.Results[st] {
			if mf.MaxDiffs > 0 && len(data.Diffs) >= mf.MaxDiffs {
				data.Omitted++
				continue
			}
			diffs := review.DiffEntry(e, page.Stages)
			if e.ChangePoint < 0 || e.ChangePoint >= len(diffs) {
				continue
			}
			sd := diffs[e.ChangePoint]
			data.Diffs = append(data.Diffs, entryDiff{
				ID:    e.ID,
				State: e.State,
				Stage: sd.Stage,
				Body:  strings.TrimSuffix(review.RenderDiff(sd.Lines), "\n"),
			})
		}
	}
	return data
}

const markdownTemplate = `# Review of {{ .Test }}

**Corpora:** {{ join .Corpora ", " }}

| State | Count |
|-------|-------|
| added | {{ .Counts.Added }} |
| deleted | {{ .Counts.Deleted }} |
| missing | {{ .Counts.Missing }} |
| changed_final | {{ .Counts.ChangedFinal }} |
| changed_any | {{ .Counts.ChangedAny }} |
| golden | {{ .Counts.Golden }} |
| unchanged | {{ .Counts.Unchanged }} |
| **total** | **{{ .Counts.Total }}** |

{{- range .Lists }}

## {{ .Title }}

{{- range .IDs }}
- ` + "`{{ . }}`" + `
{{- end }}
{{- end }}

{{- if .Diffs }}

## Changes (page {{ .Page }} of {{ .Counts.Pages }})
{{- range .Diffs }}

### ` + "`{{ .ID }}`" + ` {{ .State }} at {{ .Stage }}

` + "```diff" + `
{{ .Body }}
` + "```" + `
{{- end }}
{{- end }}

{{- if .Omitted }}

_{{ .Omitted }} more changed entries omitted._
{{- end }}
`
