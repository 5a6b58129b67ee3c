package ingest

import "strings"

// NGrams returns the contiguous n-token windows of tokens, joined by single
// spaces, left to right. Repeats are kept. Returns nil when len(tokens) < n
// or n < 1.
func NGrams(tokens []string, n int) []string {
	if n < 1 || len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		if n == 1 {
			out = append(out, tokens[i])
			continue
		}
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}
