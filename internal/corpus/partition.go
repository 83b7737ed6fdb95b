package corpus

import (
	"bufio"
	"io"

	"github.com/boshu2/regtest/internal/artifact"
)

// Partition splits the unique segments, sorted by hash, into contiguous
// chunks of ceil(unique/n) segments. n is capped to the number of unique
// segments and empty chunks are not returned, so an empty set yields no
// partitions at all.
func Partition(s *Set, n int) [][]Segment {
	hashes := s.SortedHashes()
	if len(hashes) == 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	n = min(n, len(hashes))
	size := (len(hashes) + n - 1) / n

	var parts [][]Segment
	for start := 0; start < len(hashes); start += size {
		end := min(start+size, len(hashes))
		part := make([]Segment, 0, end-start)
		for _, h := range hashes[start:end] {
			part = append(part, Segment{Hash: h, Text: s.Unique[h]})
		}
		parts = append(parts, part)
	}
	return parts
}

// WritePartition writes one worker's input: every segment tagged with its
// hash and followed by a flush marker.
func WritePartition(w io.Writer, segs []Segment) error {
	bw := bufio.NewWriter(w)
	for _, seg := range segs {
		if _, err := bw.WriteString(artifact.TagSegment(seg.Hash, seg.Text)); err != nil {
			return err
		}
		if _, err := bw.WriteString("\n\n" + artifact.FlushMarker + "\n\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
