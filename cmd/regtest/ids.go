package main

import "strings"

// splitIDs flattens flag values separated by commas, semicolons or blanks.
func splitIDs(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, id := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
		}) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
