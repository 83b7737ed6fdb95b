package corpus

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/boshu2/regtest/internal/worker"
)

// Source names one corpus file.
type Source struct {
	Name string
	Path string
}

// Set is the result of ingesting the corpora of one run: the table of unique
// segments shared by every corpus and one index per corpus.
type Set struct {
	// Unique maps each content hash to its canonical text.
	Unique map[string]string

	// Indexes maps corpus name to its index.
	Indexes map[string]*Index

	// Corpora lists the corpus names in ingestion order.
	Corpora []string
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		Unique:  make(map[string]string),
		Indexes: make(map[string]*Index),
	}
}

// Add merges the segments of one corpus into the set.
func (s *Set) Add(corpus string, segs []Segment) {
	ix, ok := s.Indexes[corpus]
	if !ok {
		ix = NewIndex(corpus)
		s.Indexes[corpus] = ix
		s.Corpora = append(s.Corpora, corpus)
	}
	for _, seg := range segs {
		ix.Add(seg.Hash, seg.Line)
		if _, ok := s.Unique[seg.Hash]; !ok {
			s.Unique[seg.Hash] = seg.Text
		}
	}
}

// SortedHashes returns every unique hash in ascending order.
func (s *Set) SortedHashes() []string {
	out := make([]string, 0, len(s.Unique))
	for h := range s.Unique {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Ingestor reads corpus files concurrently and merges them deterministically.
type Ingestor struct {
	concurrency int
	log         *zap.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithConcurrency bounds the number of corpus files read at once.
func WithConcurrency(n int) IngestorOption {
	return func(in *Ingestor) {
		in.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) IngestorOption {
	return func(in *Ingestor) {
		in.log = log
	}
}

// NewIngestor creates an ingestor.
func NewIngestor(opts ...IngestorOption) *Ingestor {
	in := &Ingestor{log: zap.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest reads every source and merges them in the given order, so the
// canonical text of a segment shared by several corpora is the one seen first.
func (in *Ingestor) Ingest(ctx context.Context, sources []Source) (*Set, error) {
	pool := worker.NewPool[Source, []Segment](in.concurrency)
	results := pool.Process(ctx, sources, func(_ context.Context, src Source) ([]Segment, error) {
		return readFile(src.Path)
	})

	set := NewSet()
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("read corpus %s: %w", sources[i].Name, r.Err)
		}
		set.Add(sources[i].Name, r.Value)
		in.log.Debug("corpus ingested",
			zap.String("corpus", sources[i].Name),
			zap.Int("segments", len(r.Value)),
			zap.Int("distinct", set.Indexes[sources[i].Name].Len()))
	}
	if len(set.Unique) == 0 {
		return nil, ErrNoSegments
	}
	in.log.Info("corpora ingested",
		zap.Int("corpora", len(set.Corpora)),
		zap.Int("unique", len(set.Unique)))
	return set, nil
}

func readFile(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only
	return ReadSegments(f)
}

// WriteIndexes persists every corpus index through write, which receives the
// corpus name and a callback rendering the index.
func (s *Set) WriteIndexes(write func(corpus string, render func(io.Writer) error) error) error {
	for _, c := range s.Corpora {
		ix := s.Indexes[c]
		if err := write(c, func(w io.Writer) error {
			_, err := ix.WriteTo(w)
			return err
		}); err != nil {
			return fmt.Errorf("write index for %s: %w", c, err)
		}
	}
	return nil
}
