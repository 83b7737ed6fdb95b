package review

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/corpus"
	"github.com/boshu2/regtest/internal/pipeline"
)

// TestInfo is the resolved description of a test the review side works on.
type TestInfo struct {
	Name    string
	Stages  []pipeline.Stage
	Corpora []config.Corpus
	Env     []string
	Gold    bool
	Git     bool
	// Grep hides entries whose texts never match it.
	Grep *regexp.Regexp
}

// StageNames returns the names of the compared stages.
func (t *TestInfo) StageNames() []string {
	out := make([]string, len(t.Stages))
	for i, s := range t.Stages {
		out[i] = s.Name
	}
	return out
}

// StageIndex returns the position of the named stage; an empty name selects
// the last one.
func (t *TestInfo) StageIndex(name string) (int, error) {
	if name == "" {
		return len(t.Stages) - 1, nil
	}
	for i, s := range t.Stages {
		if s.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stage %q", ErrInvalidParam, name)
}

// Corpus looks a corpus up by name.
func (t *TestInfo) Corpus(name string) (config.Corpus, bool) {
	for _, c := range t.Corpora {
		if c.Name == name {
			return c, true
		}
	}
	return config.Corpus{}, false
}

// Select returns the named corpora, or all of them when names is empty.
func (t *TestInfo) Select(names []string) ([]config.Corpus, error) {
	if len(names) == 0 {
		return t.Corpora, nil
	}
	out := make([]config.Corpus, 0, len(names))
	for _, n := range names {
		c, ok := t.Corpus(n)
		if !ok {
			return nil, fmt.Errorf("%w: corpus %q is not part of test %q", ErrInvalidParam, n, t.Name)
		}
		out = append(out, c)
	}
	return out, nil
}

// Session is the in-memory review state of one test. It is not safe for
// concurrent use; the Registry serializes access.
type Session struct {
	info    *TestInfo
	store   *artifact.Store
	entries map[string]*Entry
	loaded  map[string]bool
}

func newSession(info *TestInfo, store *artifact.Store) *Session {
	return &Session{
		info:    info,
		store:   store,
		entries: make(map[string]*Entry),
		loaded:  make(map[string]bool),
	}
}

// Entry returns the entry with id.
func (s *Session) Entry(id string) (*Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

func (s *Session) entry(id string) *Entry {
	e, ok := s.entries[id]
	if !ok {
		e = newEntry(id, len(s.info.Stages))
		s.entries[id] = e
	}
	return e
}

// ensure loads every corpus of cs not loaded yet and reports whether a
// missing baseline was bootstrapped from current output.
func (s *Session) ensure(cs []config.Corpus) (bool, error) {
	bootstrapped := false
	for _, c := range cs {
		if s.loaded[c.Name] {
			continue
		}
		b, err := s.loadCorpus(c)
		if err != nil {
			return bootstrapped, err
		}
		bootstrapped = bootstrapped || b
	}
	for _, e := range s.entries {
		e.reclassify()
	}
	return bootstrapped, nil
}

func (s *Session) loadCorpus(c config.Corpus) (bool, error) {
	test := s.info.Name
	ix, err := readIndex(s.store.IndexPath(test, c.Name), c.Name)
	if err != nil {
		return false, err
	}

	inputs, err := s.readCurrent(c.Name, artifact.InputStage)
	if err != nil {
		return false, err
	}
	for _, id := range ix.Hashes() {
		e := s.entry(id)
		line, _ := ix.Line(id)
		e.Corpora[c.Name] = line
		if b, ok := inputs[id]; ok {
			e.Input, e.Attrs = b.Text, b.Attrs
		}
	}

	bootstrapped := false
	for i, st := range s.info.Stages {
		cur, err := s.readCurrent(c.Name, st.Name)
		if err != nil {
			return false, err
		}
		for id, b := range cur {
			if ix.Has(id) {
				s.entry(id).Current[i] = b.Text
			}
		}

		if st.Traced() {
			trace := pipeline.TraceName(st.Name)
			if tr, err := s.store.ReadBlocks(s.store.OutputPath(test, c.Name, trace)); err == nil {
				for id, b := range tr {
					e := s.entry(id)
					if e.Traces == nil {
						e.Traces = make(map[string]string)
					}
					e.Traces[trace] = b.Text
				}
			}
		}

		path := s.store.BaselinePath(test, c.Name, st.Name, c.Local)
		if !s.store.Exists(path) {
			if err := s.store.Copy(s.store.OutputPath(test, c.Name, st.Name), path); err != nil {
				return false, fmt.Errorf("bootstrap baseline %s: %w", path, err)
			}
			bootstrapped = true
		}
		base, err := s.store.ReadBlocks(path)
		if err != nil {
			return false, fmt.Errorf("read baseline %s: %w", path, err)
		}
		for id, b := range base {
			e := s.entry(id)
			if e.Baseline[i] == "" {
				e.Baseline[i] = b.Text
			}
			if _, ok := e.Corpora[c.Name]; !ok {
				e.Corpora[c.Name] = 0
			}
			if e.Input == "" && e.Attrs == nil {
				e.Attrs = b.Attrs
			}
		}
	}

	goldPath := s.store.GoldPath(test, c.Name, c.Local)
	if s.store.Exists(goldPath) {
		golds, err := s.store.ReadGold(goldPath)
		if err != nil {
			return false, fmt.Errorf("read gold %s: %w", goldPath, err)
		}
		for id, cands := range golds {
			if e, ok := s.entries[id]; ok {
				e.Gold = artifact.SortedSet(append(e.Gold, cands...))
			}
		}
	}

	s.loaded[c.Name] = true
	return bootstrapped, nil
}

func (s *Session) readCurrent(corpusName, stage string) (map[string]artifact.Block, error) {
	blocks, err := s.store.ReadBlocks(s.store.OutputPath(s.info.Name, corpusName, stage))
	if errors.Is(err, artifact.ErrMissing) {
		return nil, fmt.Errorf("%w: no %s output for corpus %s", ErrStateMissing, stage, corpusName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMissing, err)
	}
	return blocks, nil
}

func readIndex(path, name string) (*corpus.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus %s has no index", ErrStateMissing, name)
	}
	defer f.Close() //nolint:errcheck // read-only
	ix, err := corpus.ReadIndex(f, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMissing, err)
	}
	return ix, nil
}

// visible applies the test's text filter.
func (s *Session) visible(e *Entry) bool {
	re := s.info.Grep
	if re == nil {
		return true
	}
	if re.MatchString(e.Input) {
		return true
	}
	for i := range e.Current {
		if re.MatchString(e.Current[i]) || re.MatchString(e.Baseline[i]) {
			return true
		}
	}
	return false
}

// inAny reports whether e belongs, or belonged, to one of corpora.
func inAny(e *Entry, corpora map[string]bool) bool {
	for c := range e.Corpora {
		if corpora[c] {
			return true
		}
	}
	return false
}

// scoped returns e as seen from the selected corpora: an entry that left all
// of them is deleted there even if another corpus still holds it.
func scoped(e *Entry, corpora map[string]bool) *Entry {
	if e.State == StateDeleted {
		return e
	}
	for c, line := range e.Corpora {
		if line > 0 && corpora[c] {
			return e
		}
	}
	d := *e
	d.State, d.GoldStatus, d.ChangePoint = StateDeleted, GoldNone, -1
	return &d
}

// Query selects a page of entries.
type Query struct {
	Corpora  []string
	Gold     GoldFilter
	Page     int
	PageSize int
}

// Counts are the bucket sizes of a query.
type Counts struct {
	Total        int `json:"total"`
	Added        int `json:"added"`
	Deleted      int `json:"deleted"`
	Missing      int `json:"missing"`
	ChangedFinal int `json:"changed_final"`
	ChangedAny   int `json:"changed_any"`
	Golden       int `json:"golden"`
	Unchanged    int `json:"unchanged"`
	Page         int `json:"page"`
	Pages        int `json:"pages"`
}

func (c *Counts) add(s State) {
	c.Total++
	switch s {
	case StateAdded:
		c.Added++
	case StateDeleted:
		c.Deleted++
	case StateMissing:
		c.Missing++
	case StateChangedFinal:
		c.ChangedFinal++
	case StateChangedAny:
		c.ChangedAny++
	case StateGolden:
		c.Golden++
	case StateUnchanged:
		c.Unchanged++
	}
}

// Page is the answer to a Query.
type Page struct {
	Test    string             `json:"test"`
	Stages  []string           `json:"stages"`
	Corpora []string           `json:"corpora"`
	Counts  Counts             `json:"counts"`
	Results map[State][]*Entry `json:"results"`
}

// query buckets the visible entries of the selected corpora. Added, deleted
// and missing entries are returned in full; the other buckets are paged in
// presentation order after the gold filter.
func (s *Session) query(q Query) *Page {
	selected := make(map[string]bool, len(q.Corpora))
	for _, c := range q.Corpora {
		selected[c] = true
	}

	buckets := make(map[State][]*Entry)
	var counts Counts
	for _, e := range s.entries {
		if !inAny(e, selected) || !s.visible(e) {
			continue
		}
		e = scoped(e, selected)
		counts.add(e.State)
		buckets[e.State] = append(buckets[e.State], e)
	}

	page := &Page{
		Test:    s.info.Name,
		Stages:  s.info.StageNames(),
		Corpora: q.Corpora,
		Results: make(map[State][]*Entry, len(States)),
	}
	for _, st := range States {
		sortEntries(buckets[st])
		page.Results[st] = []*Entry{}
	}
	for _, st := range []State{StateAdded, StateDeleted, StateMissing} {
		page.Results[st] = append(page.Results[st], buckets[st]...)
	}

	size := q.PageSize
	if size <= 0 {
		size = 250
	}
	from := max(q.Page, 0) * size
	n := 0
	for _, st := range pagedStates {
		for _, e := range buckets[st] {
			if !q.Gold.Match(e.GoldStatus) {
				continue
			}
			if n >= from && n < from+size {
				page.Results[st] = append(page.Results[st], e)
			}
			n++
		}
	}
	counts.Page = max(q.Page, 0)
	counts.Pages = (n + size - 1) / size
	page.Counts = counts
	return page
}
