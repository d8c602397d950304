package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/krishimitr/assistant/internal/language"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/storage"
)

const (
	fieldQuery   = "query"
	fieldContent = "content"
)

// IndexMatcher keeps an in-memory full-text index over the store's records
// and answers with prefix matching on the query and content fields.
type IndexMatcher struct {
	source RecordSource
	logger *observability.Logger

	// rebuildMu serialises rebuilds. While one runs, Add also records into
	// pending so the fresh index picks up records learned after All returned.
	rebuildMu sync.Mutex

	mu         sync.RWMutex
	index      bleve.Index
	records    map[string]storage.Record
	rebuilding bool
	pending    []storage.Record
}

// NewIndexMatcher creates an index matcher. Rebuild must run before Match.
func NewIndexMatcher(source RecordSource, logger *observability.Logger) *IndexMatcher {
	if logger == nil {
		logger = observability.Nop()
	}
	return &IndexMatcher{
		source: source,
		logger: logger.WithComponent("index_matcher"),
	}
}

// Rebuild replaces the index with one built from the current store contents.
// Records added while it runs are carried over into the new index.
func (m *IndexMatcher) Rebuild(ctx context.Context) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	m.mu.Lock()
	m.rebuilding = true
	m.pending = nil
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.rebuilding = false
		m.pending = nil
		m.mu.Unlock()
	}()

	records, err := m.source.All(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	idx, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	byID := make(map[string]storage.Record, len(records))
	batch := idx.NewBatch()
	for _, rec := range records {
		id := docID(rec.ID)
		if err := batch.Index(id, indexDocument(rec)); err != nil {
			_ = idx.Close()
			return fmt.Errorf("index record %d: %w", rec.ID, err)
		}
		byID[id] = rec
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("write index batch: %w", err)
	}

	m.mu.Lock()
	for _, rec := range m.pending {
		id := docID(rec.ID)
		if _, ok := byID[id]; ok {
			continue
		}
		if err := idx.Index(id, indexDocument(rec)); err != nil {
			m.mu.Unlock()
			_ = idx.Close()
			return fmt.Errorf("index record %d: %w", rec.ID, err)
		}
		byID[id] = rec
	}
	old := m.index
	m.index = idx
	m.records = byID
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	m.logger.Debug().Int("records", len(records)).Msg("Offline index rebuilt")
	return nil
}

// Add indexes one record.
func (m *IndexMatcher) Add(rec storage.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rebuilding {
		m.pending = append(m.pending, rec)
	}
	if m.index == nil {
		if m.rebuilding {
			return nil
		}
		return ErrNotReady
	}

	id := docID(rec.ID)
	if err := m.index.Index(id, indexDocument(rec)); err != nil {
		return fmt.Errorf("index record %d: %w", rec.ID, err)
	}
	m.records[id] = rec
	return nil
}

// Match returns the top hit. Equal scores resolve to the lowest record ID.
func (m *IndexMatcher) Match(ctx context.Context, q string, _ language.Locale) (*Match, error) {
	tokens := Tokenize(q)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return nil, ErrNotReady
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	disjunction := bleve.NewDisjunctionQuery()
	for _, tok := range tokens {
		for _, field := range []string{fieldQuery, fieldContent} {
			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(field)
			disjunction.AddQuery(pq)
		}
	}

	req := bleve.NewSearchRequestOptions(query.Query(disjunction), 1, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := m.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	hit := res.Hits[0]
	rec, ok := m.records[hit.ID]
	if !ok {
		return nil, nil
	}
	return &Match{Record: rec, Score: hit.Score}, nil
}

// Close releases the index.
func (m *IndexMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		return nil
	}
	err := m.index.Close()
	m.index = nil
	return err
}

func newIndexMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldQuery, text)
	doc.AddFieldMappingsAt(fieldContent, text)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

func indexDocument(rec storage.Record) map[string]interface{} {
	return map[string]interface{}{
		fieldQuery:   rec.Query,
		fieldContent: rec.Content,
	}
}

// docID zero-pads record IDs so the index's lexical ID sort is numeric.
func docID(id int64) string {
	return fmt.Sprintf("%020d", id)
}
