// Package review reconciles the current output of a test with its accepted
// baseline and gold standard, classifies every segment into a review state,
// and applies accept and gold mutations back onto the artifact tree.
package review

import (
	"fmt"
	"sort"

	"github.com/boshu2/regtest/internal/artifact"
)

// State is the review classification of an entry.
type State string

// Review states, in presentation order.
const (
	StateAdded        State = "added"
	StateDeleted      State = "deleted"
	StateMissing      State = "missing"
	StateChangedFinal State = "changed_final"
	StateChangedAny   State = "changed_any"
	StateGolden       State = "golden"
	StateUnchanged    State = "unchanged"
)

// States lists every state in presentation order.
var States = []State{
	StateAdded, StateDeleted, StateMissing,
	StateChangedFinal, StateChangedAny, StateGolden, StateUnchanged,
}

// pagedStates are returned page by page; the others always in full.
var pagedStates = []State{StateChangedFinal, StateChangedAny, StateGolden, StateUnchanged}

// Reviewable reports whether entries in s can be accepted or given gold.
func (s State) Reviewable() bool {
	switch s {
	case StateChangedFinal, StateChangedAny, StateGolden, StateUnchanged:
		return true
	}
	return false
}

// GoldStatus tells how an entry's final output relates to its gold set.
type GoldStatus string

const (
	// GoldNone means no gold set exists.
	GoldNone GoldStatus = "none"
	// GoldMatched means the final output is one of the candidates.
	GoldMatched GoldStatus = "matched"
	// GoldUnmatched means a gold set exists and the final output is not in it.
	GoldUnmatched GoldStatus = "unmatched"
)

// GoldFilter selects entries by gold status. The zero value selects all.
type GoldFilter string

// ParseGoldFilter accepts the long names and the single letters *, w, m, u.
func ParseGoldFilter(s string) (GoldFilter, error) {
	switch s {
	case "", "*", "any":
		return "", nil
	case "w", "unset", "none":
		return GoldFilter(GoldNone), nil
	case "m", "matched":
		return GoldFilter(GoldMatched), nil
	case "u", "unmatched":
		return GoldFilter(GoldUnmatched), nil
	}
	return "", fmt.Errorf("%w: gold filter %q", ErrInvalidParam, s)
}

// Match reports whether status passes the filter.
func (f GoldFilter) Match(status GoldStatus) bool {
	return f == "" || GoldStatus(f) == status
}

// Entry is one segment under review.
type Entry struct {
	ID    string          `json:"id"`
	Input string          `json:"input"`
	Attrs []artifact.Attr `json:"attrs,omitempty"`
	// Current and Baseline hold one output per compared stage.
	Current  []string `json:"current"`
	Baseline []string `json:"baseline"`
	// Traces holds the current trace output keyed by trace stage name.
	Traces map[string]string `json:"traces,omitempty"`
	Gold   []string          `json:"gold,omitempty"`
	// Corpora maps corpus name to line number; 0 marks a segment that left
	// the corpus but is still in its baseline.
	Corpora     map[string]int `json:"corpora"`
	State       State          `json:"state"`
	GoldStatus  GoldStatus     `json:"gold_status"`
	ChangePoint int            `json:"change_point"`
}

func newEntry(id string, stages int) *Entry {
	return &Entry{
		ID:          id,
		Current:     make([]string, stages),
		Baseline:    make([]string, stages),
		Corpora:     make(map[string]int),
		ChangePoint: -1,
	}
}

// InCorpus reports whether the entry is part of corpus's current input.
func (e *Entry) InCorpus(corpus string) bool {
	return e.Corpora[corpus] > 0
}

// Live reports whether the entry is part of any corpus's current input.
func (e *Entry) Live() bool {
	for _, line := range e.Corpora {
		if line > 0 {
			return true
		}
	}
	return false
}

// Final is the current output of the last stage.
func (e *Entry) Final() string {
	if len(e.Current) == 0 {
		return ""
	}
	return e.Current[len(e.Current)-1]
}

func (e *Entry) reclassify() {
	e.State, e.GoldStatus, e.ChangePoint = Classify(e.Live(), e.Current, e.Baseline, e.Gold)
}

// sortKey orders entries by their first corpus and line.
func (e *Entry) sortKey() (string, int) {
	names := make([]string, 0, len(e.Corpora))
	for c := range e.Corpora {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		if e.Corpora[c] > 0 {
			return c, e.Corpora[c]
		}
	}
	if len(names) > 0 {
		return names[0], 0
	}
	return "", 0
}

func sortEntries(es []*Entry) {
	sort.Slice(es, func(i, j int) bool {
		ci, li := es[i].sortKey()
		cj, lj := es[j].sortKey()
		if ci != cj {
			return ci < cj
		}
		if li != lj {
			return li < lj
		}
		return es[i].ID < es[j].ID
	})
}
