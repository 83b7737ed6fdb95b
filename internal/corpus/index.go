package corpus

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Index maps the content hashes of one corpus to the line where each segment
// first occurred, in first-occurrence order.
type Index struct {
	Corpus string
	order  []string
	lines  map[string]int
}

// NewIndex creates an empty index for corpus.
func NewIndex(corpus string) *Index {
	return &Index{Corpus: corpus, lines: make(map[string]int)}
}

// Add records hash at line unless it is already present. It reports whether
// the hash was new to this corpus.
func (ix *Index) Add(hash string, line int) bool {
	if _, ok := ix.lines[hash]; ok {
		return false
	}
	ix.lines[hash] = line
	ix.order = append(ix.order, hash)
	return true
}

// Line returns the first line of hash in the corpus.
func (ix *Index) Line(hash string) (int, bool) {
	ln, ok := ix.lines[hash]
	return ln, ok
}

// Has reports whether hash occurs in the corpus.
func (ix *Index) Has(hash string) bool {
	_, ok := ix.lines[hash]
	return ok
}

// Hashes returns the hashes in first-occurrence order.
func (ix *Index) Hashes() []string {
	return append([]string(nil), ix.order...)
}

// Len is the number of distinct segments in the corpus.
func (ix *Index) Len() int {
	return len(ix.order)
}

// WriteTo writes the index as hash<TAB>line records.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, h := range ix.order {
		c, err := fmt.Fprintf(bw, "%s\t%d\n", h, ix.lines[h])
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// ReadIndex parses hash<TAB>line records written by WriteTo.
func ReadIndex(r io.Reader, corpus string) (*Index, error) {
	ix := NewIndex(corpus)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		hash, num, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: %q", ErrBadIndex, n, line)
		}
		ln, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadIndex, n, err)
		}
		ix.Add(hash, ln)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ix, nil
}
