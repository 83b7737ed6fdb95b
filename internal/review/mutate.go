package review

import (
	"fmt"
	"sort"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/config"
)

// GoldOp is a gold set mutation.
type GoldOp string

const (
	// GoldAdd adds the final output to the existing candidates.
	GoldAdd GoldOp = "add"
	// GoldReplace makes the final output the only candidate.
	GoldReplace GoldOp = "replace"
	// GoldSet replaces the candidates with an explicit list.
	GoldSet GoldOp = "set"
)

// ParseGoldOp validates a gold operation name.
func ParseGoldOp(s string) (GoldOp, error) {
	switch op := GoldOp(s); op {
	case GoldAdd, GoldReplace, GoldSet:
		return op, nil
	}
	return "", fmt.Errorf("%w: gold operation %q", ErrInvalidParam, s)
}

// accept copies current output into the baseline of stages 0..upto of every
// reviewable entry in ids.
func (s *Session) accept(ids []string, upto int) (mutated []string, touched map[string]bool) {
	touched = make(map[string]bool)
	for _, id := range ids {
		e, ok := s.entries[id]
		if !ok || !e.State.Reviewable() {
			continue
		}
		for i := 0; i <= upto && i < len(e.Current); i++ {
			e.Baseline[i] = e.Current[i]
		}
		e.reclassify()
		mutated = append(mutated, id)
		markTouched(e, touched)
	}
	return mutated, touched
}

// acceptNoDiff adopts every added entry of corpus as its baseline and
// acknowledges every entry that left it.
func (s *Session) acceptNoDiff(corpusName string) []string {
	var ids []string
	for id, e := range s.entries {
		line, member := e.Corpora[corpusName]
		switch {
		case !member:
			continue
		case line == 0:
			delete(e.Corpora, corpusName)
			if len(e.Corpora) == 0 {
				delete(s.entries, id)
			} else {
				e.reclassify()
			}
			ids = append(ids, id)
		case e.State == StateAdded:
			copy(e.Baseline, e.Current)
			e.reclassify()
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// gold applies op to every reviewable entry in ids.
func (s *Session) gold(op GoldOp, ids, candidates []string) (mutated []string, touched map[string]bool) {
	touched = make(map[string]bool)
	for _, id := range ids {
		e, ok := s.entries[id]
		if !ok || !e.State.Reviewable() {
			continue
		}
		switch op {
		case GoldAdd:
			e.Gold = artifact.SortedSet(append(append([]string(nil), e.Gold...), e.Final()))
		case GoldReplace:
			e.Gold = artifact.SortedSet([]string{e.Final()})
		case GoldSet:
			e.Gold = artifact.SortedSet(append([]string(nil), candidates...))
		}
		e.reclassify()
		mutated = append(mutated, id)
		markTouched(e, touched)
	}
	return mutated, touched
}

func markTouched(e *Entry, touched map[string]bool) {
	for c, line := range e.Corpora {
		if line > 0 {
			touched[c] = true
		}
	}
}

// members returns the entries currently in corpus, sorted by id.
func (s *Session) members(corpusName string, keep func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.InCorpus(corpusName) && keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// persistBaseline rewrites every baseline file of c from memory. Entries
// without an accepted baseline and entries that left c are not written.
func (s *Session) persistBaseline(c config.Corpus) error {
	entries := s.members(c.Name, func(e *Entry) bool { return e.Baseline[0] != "" })
	for i, st := range s.info.Stages {
		blocks := make([]artifact.Block, len(entries))
		for j, e := range entries {
			blocks[j] = artifact.Block{ID: e.ID, Attrs: e.Attrs, Text: e.Baseline[i]}
		}
		path := s.store.BaselinePath(s.info.Name, c.Name, st.Name, c.Local)
		if err := s.store.WriteBlocks(path, blocks); err != nil {
			return fmt.Errorf("write baseline %s: %w", path, err)
		}
	}
	return nil
}

// persistGold rewrites the gold file of c; it disappears once no entry of c
// has candidates.
func (s *Session) persistGold(c config.Corpus) error {
	entries := s.members(c.Name, func(e *Entry) bool { return len(e.Gold) > 0 })
	golds := make([]artifact.Gold, len(entries))
	for i, e := range entries {
		golds[i] = artifact.Gold{ID: e.ID, Candidates: e.Gold}
	}
	path := s.store.GoldPath(s.info.Name, c.Name, c.Local)
	if err := s.store.WriteGold(path, golds); err != nil {
		return fmt.Errorf("write gold %s: %w", path, err)
	}
	return nil
}
