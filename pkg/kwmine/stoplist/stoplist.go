package stoplist

import (
	"sort"
	"strings"
)

// Manager holds the exclusion vocabulary applied before n-gram generation.
// Lookups are case-insensitive.
type Manager struct {
	stops map[string]struct{}
}

// NewManager creates a new stoplist manager
func NewManager(initialStops []string) *Manager {
	m := &Manager{stops: make(map[string]struct{}, len(initialStops))}
	for _, s := range initialStops {
		m.Add(s)
	}
	return m
}

// NewDefault returns a manager seeded with DefaultTerms.
func NewDefault() *Manager {
	return NewManager(DefaultTerms)
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	_, ok := m.stops[normalize(token)]
	return ok
}

// Add adds a token to the stoplist. Blank tokens are ignored.
func (m *Manager) Add(token string) {
	token = normalize(token)
	if token == "" {
		return
	}
	m.stops[token] = struct{}{}
}

// Merge adds every token of other to m.
func (m *Manager) Merge(tokens []string) {
	for _, t := range tokens {
		m.Add(t)
	}
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, normalize(token))
}

// Len returns the number of stopwords.
func (m *Manager) Len() int {
	return len(m.stops)
}

// All returns all stopwords in lexical order.
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

func normalize(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// DefaultTerms is a small English function-word list. Single characters are
// already dropped by the tokenizer, so "a" and "i" are not listed.
var DefaultTerms = []string{
	"an", "and", "are", "as", "at", "be", "by", "for", "from", "how",
	"in", "is", "it", "near", "of", "on", "or", "that", "the", "this",
	"to", "was", "what", "when", "where", "which", "who", "why", "will",
	"with", "me", "my",
}
