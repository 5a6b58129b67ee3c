package ingest

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer splits query text into lower-cased, whitespace-delimited tokens
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a new tokenizer with the given stopword list
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops}
}

// Tokenize lower-cases text, splits it on runs of whitespace and drops
// single-character tokens and stopwords. Order is preserved.
func (t *Tokenizer) Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 1 {
			continue
		}
		if t.isStopword(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

