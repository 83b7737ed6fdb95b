// Package artifact reads and writes the tagged block format shared by stage
// outputs, accepted baselines and gold standards, and lays those files out on
// disk for a test.
//
// A block looks like
//
//	<s id="HASH" key="value">
//	body text
//	</s>
//
// and blocks are separated by a blank line. Gold files nest one or more
// <gold>...</gold> candidates inside each block. The legacy bare form
// <sHASH-N> without attributes is still accepted when reading.
package artifact

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	// CloseTag terminates every block.
	CloseTag = "</s>"

	// FlushMarker follows every block fed to a worker so streaming stages
	// can checkpoint between segments.
	FlushMarker = "<STREAMCMD:FLUSH>"

	goldOpen  = "<gold>"
	goldClose = "</gold>"
)

var (
	idTagRe     = regexp.MustCompile(`^<s id="([^"]+)"`)
	idAttrRe    = regexp.MustCompile(` id="([^"]+)"`)
	legacyTagRe = regexp.MustCompile(`^<s([a-zA-Z0-9]+)-\d+>\n?$`)
	trailingWS  = regexp.MustCompile(`[ \t]+\n`)
	blankRuns   = regexp.MustCompile(`\n\n\n+`)
	goldOpenRe  = regexp.MustCompile(`(^|\n)<gold>(\n|$)`)
)

// Attr is one free-form attribute on a block's open tag.
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Block is one identifier-tagged unit of an artifact file.
type Block struct {
	ID    string
	Attrs []Attr
	Text  string
}

// Gold is the candidate set of one block in a gold file.
type Gold struct {
	ID         string
	Candidates []string
}

// IDFromTag returns the identifier of an open tag line, if it is one.
func IDFromTag(line string) (string, bool) {
	m := idTagRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// OpenTag renders an open tag carrying id and attrs.
func OpenTag(id string, attrs []Attr) string {
	var b strings.Builder
	b.WriteString(`<s id="`)
	b.WriteString(id)
	b.WriteByte('"')
	for _, a := range attrs {
		fmt.Fprintf(&b, ` %s="%s"`, a.Name, html.EscapeString(a.Value))
	}
	b.WriteByte('>')
	return b.String()
}

// TagSegment gives a normalized input segment an explicit identifier. Segments
// that are already literal <s> blocks get the id spliced into their own tag.
func TagSegment(id, text string) string {
	if strings.HasPrefix(text, "<s") {
		return `<s id="` + id + `"` + text[2:]
	}
	return OpenTag(id, nil) + "\n" + text + "\n" + CloseTag
}

// NormalizeBody strips trailing blanks on every line, collapses runs of
// blank lines and trims the result.
func NormalizeBody(s string) string {
	s = trailingWS.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// NormalizeRaw applies NormalizeBody's line rules without trimming.
func NormalizeRaw(s string) string {
	s = trailingWS.ReplaceAllString(s, "\n")
	return blankRuns.ReplaceAllString(s, "\n\n")
}

// ParseBlocks reads every block of an output or baseline file keyed by id.
// A later block with the same id replaces an earlier one.
func ParseBlocks(r io.Reader) (map[string]Block, error) {
	out := make(map[string]Block)
	err := scanBlocks(r, func(head, body string) error {
		b, err := parseHead(head)
		if err != nil {
			return err
		}
		b.Text = NormalizeBody(body)
		out[b.ID] = b
		return nil
	})
	return out, err
}

// ParseGold reads a gold file. Candidates come back sorted and deduplicated.
func ParseGold(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	err := scanBlocks(r, func(head, body string) error {
		b, err := parseHead(head)
		if err != nil {
			return err
		}
		body = goldOpenRe.ReplaceAllString(body, "\n")
		var cands []string
		for _, part := range strings.Split(body, "\n"+goldClose) {
			if c := NormalizeBody(part); c != "" {
				cands = append(cands, c)
			}
		}
		out[b.ID] = SortedSet(cands)
		return nil
	})
	return out, err
}

// ScanRaw calls fn with every block starting with an id tag, verbatim apart
// from NormalizeRaw and including its open and close lines.
func ScanRaw(r io.Reader, fn func(id, raw string) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if strings.HasPrefix(line, "<s ") {
			var b strings.Builder
			b.WriteString(line)
			for err == nil {
				var next string
				next, err = br.ReadString('\n')
				b.WriteString(next)
				if strings.HasPrefix(next, CloseTag) {
					break
				}
			}
			raw := NormalizeRaw(b.String())
			if id, ok := IDFromTag(raw); ok {
				if ferr := fn(id, raw); ferr != nil {
					return ferr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// WriteBlocks renders blocks in the given order.
func WriteBlocks(w io.Writer, blocks []Block) error {
	bw := bufio.NewWriter(w)
	for _, b := range blocks {
		if _, err := fmt.Fprintf(bw, "%s\n%s\n%s\n\n", OpenTag(b.ID, b.Attrs), b.Text, CloseTag); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteGold renders gold blocks in the given order. Blocks without candidates
// are skipped.
func WriteGold(w io.Writer, golds []Gold) error {
	bw := bufio.NewWriter(w)
	sep := "\n" + goldClose + "\n" + goldOpen + "\n"
	for _, g := range golds {
		if len(g.Candidates) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s\n%s\n%s\n%s\n%s\n\n",
			OpenTag(g.ID, nil), goldOpen, strings.Join(g.Candidates, sep), goldClose, CloseTag); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SortedSet returns the distinct values of in, sorted.
func SortedSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func scanBlocks(r io.Reader, fn func(head, body string) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if legacyTagRe.MatchString(line) || strings.HasPrefix(line, `<s id="`) {
			var body strings.Builder
			for err == nil {
				var next string
				next, err = br.ReadString('\n')
				if strings.HasPrefix(next, CloseTag) {
					break
				}
				body.WriteString(next)
			}
			if ferr := fn(strings.TrimRight(line, "\r\n"), body.String()); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func parseHead(head string) (Block, error) {
	if m := legacyTagRe.FindStringSubmatch(head); m != nil {
		return Block{ID: m[1]}, nil
	}
	m := idAttrRe.FindStringSubmatch(head)
	if m == nil {
		return Block{}, fmt.Errorf("%w: %q", ErrMalformedTag, head)
	}
	b := Block{ID: m[1]}
	rest := idAttrRe.ReplaceAllString(head, "")
	tok, err := xml.NewDecoder(strings.NewReader(rest + CloseTag)).Token()
	if err != nil {
		return Block{}, fmt.Errorf("%w: %q: %v", ErrMalformedTag, head, err)
	}
	if start, ok := tok.(xml.StartElement); ok {
		for _, a := range start.Attr {
			b.Attrs = append(b.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
		}
	}
	return b, nil
}
