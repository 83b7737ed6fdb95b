package formatter

import (
	"github.com/boshu2/regtest/internal/review"
)

func samplePage() *review.Page {
	entry := func(id string, current, baseline []string, corpora map[string]int) *review.Entry {
		e := &review.Entry{
			ID:       id,
			Input:    "in " + id,
			Current:  current,
			Baseline: baseline,
			Corpora:  corpora,
		}
		e.State, e.GoldStatus, e.ChangePoint = review.Classify(true, current, baseline, nil)
		return e
	}
	changed := entry("aaa111", []string{"A", "B\nnew"}, []string{"A", "B\nold"}, map[string]int{"one": 3})
	same := entry("bbb222", []string{"A", "<s>x</s>"}, []string{"A", "<s>x</s>"}, map[string]int{"one": 1, "two": 2})
	added := entry("ccc333", []string{"A", "C"}, []string{"", ""}, map[string]int{"two": 5})

	page := &review.Page{
		Test:    "t",
		Stages:  []string{"a", "b"},
		Corpora: []string{"one", "two"},
		Counts:  review.Counts{Total: 3, Added: 1, ChangedFinal: 1, Unchanged: 1, Pages: 1},
		Results: make(map[review.State][]*review.Entry),
	}
	for _, st := range review.States {
		page.Results[st] = []*review.Entry{}
	}
	page.Results[review.StateChangedFinal] = []*review.Entry{changed}
	page.Results[review.StateUnchanged] = []*review.Entry{same}
	page.Results[review.StateAdded] = []*review.Entry{added}
	return page
}
