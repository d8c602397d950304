// Package retrieval answers questions from the local knowledge store without
// network access.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/krishimitr/assistant/internal/language"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/storage"
)

// Matcher kinds accepted by New.
const (
	KindScan  = "scan"
	KindIndex = "index"
)

// OfflineNote annotates answers served from the local store.
const OfflineNote = "(From your device's data)"

// ErrNotReady is returned when a matcher is queried before its data is loaded.
var ErrNotReady = errors.New("offline data is not ready")

var notFoundTexts = map[language.Locale]string{
	language.EN: "I couldn't find an answer in your offline data. Please connect to the internet for a live search.",
	language.HI: "मुझे आपके ऑफ़लाइन डेटा में कोई उत्तर नहीं मिला। कृपया लाइव खोज के लिए इंटरनेट से कनेक्ट करें।",
}

// RecordSource enumerates the stored records in a stable order.
type RecordSource interface {
	All(ctx context.Context) ([]storage.Record, error)
}

// Matcher finds the single best local record for a query.
type Matcher interface {
	// Match returns nil when nothing matches.
	Match(ctx context.Context, query string, locale language.Locale) (*Match, error)
	// Rebuild reloads derived state after the store was replaced.
	Rebuild(ctx context.Context) error
	// Add makes a newly appended record searchable.
	Add(rec storage.Record) error
}

// Match is the best record found for a query.
type Match struct {
	Record storage.Record
	Score  float64
}

// Answer is a localized offline reply.
type Answer struct {
	Text   string
	Source string
	Note   string
}

// New creates the matcher selected by kind.
func New(kind string, source RecordSource, logger *observability.Logger) (Matcher, error) {
	switch kind {
	case KindScan, "":
		return NewScanMatcher(source), nil
	case KindIndex:
		return NewIndexMatcher(source, logger), nil
	default:
		return nil, fmt.Errorf("unknown matcher kind: %s", kind)
	}
}

// Localize picks the locale's content variant for m. The secondary variant is
// used only when the locale asks for it and the record has one.
func Localize(m *Match, locale language.Locale) Answer {
	text := m.Record.Content
	if locale == language.HI && m.Record.ContentHI != "" {
		text = m.Record.ContentHI
	}
	return Answer{Text: text, Source: m.Record.Source, Note: OfflineNote}
}

// NotFoundText is the fixed reply for a failed offline search.
func NotFoundText(locale language.Locale) string {
	if text, ok := notFoundTexts[locale]; ok {
		return text
	}
	return notFoundTexts[language.EN]
}

// ScanMatcher scores every record by how many query tokens occur in its
// searchable text. It reads the store on each call and keeps no state.
type ScanMatcher struct {
	source RecordSource
}

// NewScanMatcher creates a scan matcher over source.
func NewScanMatcher(source RecordSource) *ScanMatcher {
	return &ScanMatcher{source: source}
}

// Match returns the highest scoring record. Ties keep the earliest record and a
// zero best score means not found.
func (s *ScanMatcher) Match(ctx context.Context, query string, _ language.Locale) (*Match, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	records, err := s.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	var (
		best      *storage.Record
		bestScore int
	)
	for i := range records {
		score := Score(tokens, records[i].SearchText())
		if score > bestScore {
			best = &records[i]
			bestScore = score
		}
	}
	if best == nil {
		return nil, nil
	}
	return &Match{Record: *best, Score: float64(bestScore)}, nil
}

// Rebuild is a no-op; the scan reads the store directly.
func (s *ScanMatcher) Rebuild(context.Context) error { return nil }

// Add is a no-op; the scan reads the store directly.
func (s *ScanMatcher) Add(storage.Record) error { return nil }

// Score counts the tokens that appear as substrings of text, case-insensitively.
func Score(tokens []string, text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			score++
		}
	}
	return score
}
