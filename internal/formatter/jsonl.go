package formatter

import (
	"encoding/json"
	"io"

	"github.com/boshu2/regtest/internal/review"
)

// JSONLFormatter outputs review entries as JSON Lines.
// Each entry is a single JSON object on one line.
type JSONLFormatter struct {
	// Stages names the compared stages so outputs can be keyed by stage.
	Stages []string
}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter(stages []string) *JSONLFormatter {
	return &JSONLFormatter{Stages: stages}
}

// Extension returns the file extension for JSONL.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// jsonlOutput is the structure written per line.
type jsonlOutput struct {
	ID          string            `json:"id"`
	State       review.State      `json:"state"`
	GoldStatus  review.GoldStatus `json:"gold_status"`
	ChangeStage string            `json:"change_stage,omitempty"`
	Corpora     map[string]int    `json:"corpora"`
	Input       string            `json:"input"`
	Current     map[string]string `json:"current,omitempty"`
	Baseline    map[string]string `json:"baseline,omitempty"`
	Gold        []string          `json:"gold,omitempty"`
}

// Format writes every entry of page in presentation order.
func (jf *JSONLFormatter) Format(w io.Writer, page *review.Page) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false) // segments carry <s> tags
	for _, st := range review.States {
		for _, e := range page.Results[st] {
			if err := encoder.Encode(jf.buildOutput(e)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (jf *JSONLFormatter) buildOutput(e *review.Entry) *jsonlOutput {
	out := &jsonlOutput{
		ID:         e.ID,
		State:      e.State,
		GoldStatus: e.GoldStatus,
		Corpora:    e.Corpora,
		Input:      e.Input,
		Gold:       e.Gold,
		Current:    jf.byStage(e.Current),
		Baseline:   jf.byStage(e.Baseline),
	}
	if e.ChangePoint >= 0 && e.ChangePoint < len(jf.Stages) {
		out.ChangeStage = jf.Stages[e.ChangePoint]
	}
	return out
}

func (jf *JSONLFormatter) byStage(texts []string) map[string]string {
	out := make(map[string]string, len(texts))
	for i, s := range texts {
		if i < len(jf.Stages) && s != "" {
			out[jf.Stages[i]] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
