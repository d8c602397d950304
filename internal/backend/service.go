// Package backend is a self-contained development server for the assistant
// API. It answers from its own knowledge base instead of a web search.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/krishimitr/assistant/internal/domain"
	"github.com/krishimitr/assistant/internal/intent"
	"github.com/krishimitr/assistant/internal/language"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/remote"
	"github.com/krishimitr/assistant/internal/retrieval"
	"github.com/krishimitr/assistant/internal/storage"
)

// ConversationalSource is the source label of small-talk replies.
const ConversationalSource = "Conversational"

var notFoundAnswers = map[language.Locale]string{
	language.EN: "I'm sorry, I could not find a relevant source for your query. Please try rephrasing it.",
	language.HI: "क्षमा करें, आपके प्रश्न के लिए कोई प्रासंगिक स्रोत नहीं मिला। कृपया इसे दूसरे शब्दों में पूछें।",
}

// Store is the backend's knowledge base.
type Store interface {
	All(ctx context.Context) ([]storage.Record, error)
	ReplaceAll(ctx context.Context, records []storage.Record) (int, error)
	Count(ctx context.Context) (int, error)
}

// Service implements the ask and snapshot endpoints.
type Service struct {
	store    Store
	matcher  *retrieval.ScanMatcher
	intents  *intent.Matcher
	detector *language.Detector
	logger   *observability.Logger
}

// NewService creates a backend service over store.
func NewService(store Store, intents *intent.Matcher, detector *language.Detector, logger *observability.Logger) *Service {
	if intents == nil {
		intents = intent.NewMatcher(nil)
	}
	if detector == nil {
		detector = language.NewDetector(nil)
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		store:    store,
		matcher:  retrieval.NewScanMatcher(store),
		intents:  intents,
		detector: detector,
		logger:   logger.WithComponent("backend"),
	}
}

// Ask answers one query.
func (s *Service) Ask(ctx context.Context, query string) (*remote.AskResponse, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, domain.ValidationError("Query cannot be empty", nil)
	}

	start := time.Now()
	locale := s.detector.Detect(query)

	if resp, ok := s.intents.Match(query, locale); ok {
		return &remote.AskResponse{Answer: resp.Text, Sources: []string{ConversationalSource}}, nil
	}

	queryEN := strings.Join(strings.Fields(retrieval.Translate(query)), " ")

	match, err := s.matcher.Match(ctx, queryEN, locale)
	if err != nil {
		return nil, domain.StoreError("search knowledge base", err)
	}
	if match == nil {
		s.logger.Info().Str("query_en", queryEN).Msg("No source found")
		return &remote.AskResponse{Answer: notFoundAnswers[locale], Sources: []string{}}, nil
	}

	answerEN := Summarize(queryEN, match.Record.Content)
	answerHI := ""
	if match.Record.ContentHI != "" {
		answerHI = Summarize(queryEN, match.Record.ContentHI)
	}

	answer := answerEN
	if locale == language.HI && answerHI != "" {
		answer = answerHI
	}

	source := match.Record.Source
	if source == "" {
		source = "Knowledge Base"
	}

	s.logger.Info().
		Str("query_en", queryEN).
		Int64("record_id", match.Record.ID).
		Str("locale", string(locale)).
		Dur("duration", time.Since(start)).
		Msg("Answered query")

	return &remote.AskResponse{
		Answer:    answer,
		Sources:   []string{source},
		QueryEN:   queryEN,
		AnswerEN:  answerEN,
		AnswerHI:  answerHI,
		CacheHash: CacheHash(queryEN, answerEN),
	}, nil
}

// Snapshot returns the whole knowledge base in wire form.
func (s *Service) Snapshot(ctx context.Context) ([]remote.SnapshotItem, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return nil, domain.StoreError("read knowledge base", err)
	}

	items := make([]remote.SnapshotItem, 0, len(records))
	for _, r := range records {
		items = append(items, remote.SnapshotItem{
			QueryEN:   r.Query,
			Content:   r.Content,
			ContentHI: r.ContentHI,
			Source:    r.Source,
			Hash:      r.Hash,
		})
	}
	return items, nil
}

// Load replaces the knowledge base with records.
func (s *Service) Load(ctx context.Context, records []storage.Record) (int, error) {
	n, err := s.store.ReplaceAll(ctx, records)
	if err != nil {
		return 0, domain.StoreError("load knowledge base", err)
	}
	s.logger.Info().Int("records", n).Msg("Knowledge base loaded")
	return n, nil
}

// Count returns the number of stored records.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
