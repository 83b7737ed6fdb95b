package formatter

import (
	"bytes"
	"strings"
	"testing"
)

func TestMarkdownFormatter_Extension(t *testing.T) {
	if ext := NewMarkdownFormatter().Extension(); ext != ".md" {
		t.Errorf("Extension() = %q, want .md", ext)
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdownFormatter().Format(&buf, samplePage()); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Review of t",
		"**Corpora:** one, two",
		"| changed_final | 1 |",
		"| **total** | **3** |",
		"## added",
		"- `ccc333`",
		"## Changes (page 1 of 1)",
		"### `aaa111` changed_final at b",
		"```diff\n B\n-old\n+new\n```",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "bbb222") {
		t.Errorf("unchanged entries should not be listed:\n%s", out)
	}
}

func TestMarkdownFormatter_MaxDiffs(t *testing.T) {
	page := samplePage()
	mf := &MarkdownFormatter{MaxDiffs: 0}
	var buf bytes.Buffer
	if err := mf.Format(&buf, page); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "omitted") {
		t.Error("no limit should omit nothing")
	}

	page.Results["changed_final"] = append(page.Results["changed_final"], page.Results["changed_final"][0])
	mf.MaxDiffs = 1
	buf.Reset()
	if err := mf.Format(&buf, page); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "_1 more changed entries omitted._") {
		t.Errorf("expected omission note:\n%s", buf.String())
	}
}
