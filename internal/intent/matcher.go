// Package intent recognizes small-talk phrases that are answered without search.
package intent

import (
	"strings"

	"github.com/krishimitr/assistant/internal/language"
)

// Entry is one row of the small-talk table.
type Entry struct {
	Name      string
	Keywords  []string
	Responses map[language.Locale]string
}

// Response is a matched canned reply.
type Response struct {
	Intent string
	Text   string
}

// DefaultEntries is the built-in table, checked in order.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Name:     "greetings",
			Keywords: []string{"hello", "hi", "hey", "namaste", "नमस्ते"},
			Responses: map[language.Locale]string{
				language.EN: "Hello! How can I help?",
				language.HI: "नमस्ते! मैं कैसे मदद कर सकता हूँ?",
			},
		},
		{
			Name:     "thanks",
			Keywords: []string{"thank", "dhanyavad", "shukriya", "धन्यवाद", "शुक्रिया"},
			Responses: map[language.Locale]string{
				language.EN: "You're welcome! Ask me anything about your crops.",
				language.HI: "आपका स्वागत है! अपनी फसल के बारे में कुछ भी पूछें।",
			},
		},
	}
}

// Matcher checks queries against an ordered table. The first entry with a
// keyword contained in the query wins.
type Matcher struct {
	entries []Entry
}

// NewMatcher creates a matcher over entries. A nil table uses DefaultEntries.
func NewMatcher(entries []Entry) *Matcher {
	if entries == nil {
		entries = DefaultEntries()
	}
	return &Matcher{entries: entries}
}

// Match expects an already lowercased query. It returns the canned response of
// the first matching entry for the given locale, falling back to EN when the
// entry has no text for that locale.
func (m *Matcher) Match(lowerQuery string, locale language.Locale) (Response, bool) {
	for _, e := range m.entries {
		for _, k := range e.Keywords {
			if k == "" || !strings.Contains(lowerQuery, k) {
				continue
			}
			text, ok := e.Responses[locale]
			if !ok || text == "" {
				text = e.Responses[language.EN]
			}
			return Response{Intent: e.Name, Text: text}, true
		}
	}
	return Response{}, false
}

// Entries returns a copy of the table.
func (m *Matcher) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
