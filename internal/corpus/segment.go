package corpus

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/boshu2/regtest/internal/artifact"
)

var (
	commentRe   = regexp.MustCompile(`#.*`)
	spaceRunRe  = regexp.MustCompile(`\s\s+`)
	escapedNLRe = regexp.MustCompile(`\\n`)
	lineTailRe  = regexp.MustCompile(`[ \t]+\n`)
)

// Segment is one normalized unit of pipeline input.
type Segment struct {
	Hash string
	Text string
	// Line is the 1-based line where the segment starts in its corpus file.
	Line int
}

// ReadSegments splits a corpus into normalized segments in file order.
//
// A line opening an <s> block is read verbatim through its </s> line and only
// has its blank runs normalized. Any other line loses its # comment, has
// whitespace runs collapsed and literal \n sequences turned into newlines.
// Empty lines and other tag-looking lines are skipped.
func ReadSegments(r io.Reader) ([]Segment, error) {
	br := bufio.NewReader(r)
	var segs []Segment
	ln := 0
	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			if err == io.EOF {
				return segs, nil
			}
			return nil, err
		}
		ln++
		start := ln
		text := strings.TrimRight(line, " \t\r\n")

		if isBlockOpen(text) {
			var b strings.Builder
			b.WriteString(text)
			b.WriteByte('\n')
			for err == nil {
				var next string
				next, err = br.ReadString('\n')
				if next == "" {
					break
				}
				ln++
				b.WriteString(next)
				if strings.HasPrefix(next, artifact.CloseTag) {
					break
				}
			}
			text = artifact.NormalizeBody(b.String())
		} else {
			text = normalizeLine(text)
			if strings.HasPrefix(text, "<") {
				text = ""
			}
		}

		if text != "" {
			segs = append(segs, Segment{Hash: Hash(text), Text: text, Line: start})
		}
		if err == io.EOF {
			return segs, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func isBlockOpen(line string) bool {
	return strings.HasPrefix(line, "<s ") || strings.HasPrefix(line, "<s>")
}

func normalizeLine(s string) string {
	s = commentRe.ReplaceAllString(s, "")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = escapedNLRe.ReplaceAllString(s, "\n")
	s = lineTailRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
