package formatter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLFormatter_Extension(t *testing.T) {
	if ext := NewJSONLFormatter(nil).Extension(); ext != ".jsonl" {
		t.Errorf("Extension() = %q, want .jsonl", ext)
	}
}

func TestJSONLFormatter_Format(t *testing.T) {
	page := samplePage()
	var buf bytes.Buffer
	if err := NewJSONLFormatter(page.Stages).Format(&buf, page); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var lines []map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	// presentation order: added, changed_final, unchanged
	wantIDs := []string{"ccc333", "aaa111", "bbb222"}
	for i, id := range wantIDs {
		if lines[i]["id"] != id {
			t.Errorf("line %d id = %v, want %s", i, lines[i]["id"], id)
		}
	}
	if lines[1]["change_stage"] != "b" {
		t.Errorf("change_stage = %v, want b", lines[1]["change_stage"])
	}
	cur, ok := lines[1]["current"].(map[string]any)
	if !ok || cur["b"] != "B\nnew" {
		t.Errorf("current = %v", lines[1]["current"])
	}
	if _, ok := lines[0]["baseline"]; ok {
		t.Error("added entry should have no baseline")
	}
}

func TestJSONLFormatter_NoHTMLEscape(t *testing.T) {
	page := samplePage()
	var buf bytes.Buffer
	if err := NewJSONLFormatter(page.Stages).Format(&buf, page); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<s>x</s>") {
		t.Errorf("tags should not be escaped:\n%s", buf.String())
	}
}
