// Package assistant is the application context of the chat client: it routes
// each query through small talk, offline search or the live API and keeps the
// local knowledge base in step with the server.
package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krishimitr/assistant/internal/connectivity"
	"github.com/krishimitr/assistant/internal/domain"
	"github.com/krishimitr/assistant/internal/intent"
	"github.com/krishimitr/assistant/internal/language"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/remote"
	"github.com/krishimitr/assistant/internal/retrieval"
	"github.com/krishimitr/assistant/internal/storage"
)

// Placeholder is shown while a live answer is pending.
const Placeholder = "Thinking..."

// KnowledgeStore is the persistent store the assistant reads and writes.
type KnowledgeStore interface {
	All(ctx context.Context) ([]storage.Record, error)
	ReplaceAll(ctx context.Context, records []storage.Record) (int, error)
	Append(ctx context.Context, rec storage.Record) (storage.Record, error)
	Count(ctx context.Context) (int, error)
	Enqueue(ctx context.Context, query string) (storage.PendingQuery, error)
	Pending(ctx context.Context) ([]storage.PendingQuery, error)
	Dequeue(ctx context.Context, id int64) error
}

// SnapshotSource serves the full server-side knowledge base.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]storage.Record, error)
}

// Kind is the outcome of handling one input.
type Kind int

const (
	KindIgnored Kind = iota
	KindIntent
	KindOffline
	KindNotFound
	KindLive
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindIgnored:
		return "ignored"
	case KindIntent:
		return "intent"
	case KindOffline:
		return "offline"
	case KindNotFound:
		return "not_found"
	case KindLive:
		return "live"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reply describes what Handle did with an input.
type Reply struct {
	Kind    Kind
	Locale  language.Locale
	Intent  string
	Message Message
	Record  *storage.Record
}

// Options toggles optional behavior.
type Options struct {
	LearnLiveAnswers    bool
	QueueOfflineQueries bool
	ReplayInterval      time.Duration
}

// Deps are the collaborators of an Assistant.
type Deps struct {
	Store     KnowledgeStore
	Matcher   retrieval.Matcher
	Asker     remote.Asker
	Snapshots SnapshotSource
	Monitor   *connectivity.Monitor
	Intents   *intent.Matcher
	Detector  *language.Detector
	View      View
	Logger    *observability.Logger
	Options   Options
}

// Assistant owns the store, matcher, connectivity state and conversation.
type Assistant struct {
	store     KnowledgeStore
	matcher   retrieval.Matcher
	asker     remote.Asker
	snapshots SnapshotSource
	monitor   *connectivity.Monitor
	intents   *intent.Matcher
	detector  *language.Detector
	view      View
	logger    *observability.Logger
	opts      Options

	conversation *Conversation

	statusMu sync.Mutex
	status   string
}

// New wires an Assistant and subscribes it to connectivity transitions.
func New(deps Deps) (*Assistant, error) {
	if deps.Store == nil {
		return nil, domain.ConfigError("knowledge store is required", nil)
	}
	if deps.Asker == nil || deps.Snapshots == nil {
		return nil, domain.ConfigError("remote client is required", nil)
	}
	if deps.Logger == nil {
		deps.Logger = observability.Nop()
	}
	if deps.Matcher == nil {
		deps.Matcher = retrieval.NewScanMatcher(deps.Store)
	}
	if deps.Monitor == nil {
		deps.Monitor = connectivity.NewMonitor(nil, 0, false, deps.Logger)
	}
	if deps.Intents == nil {
		deps.Intents = intent.NewMatcher(nil)
	}
	if deps.Detector == nil {
		deps.Detector = language.NewDetector(nil)
	}
	if deps.View == nil {
		deps.View = NopView{}
	}

	a := &Assistant{
		store:        deps.Store,
		matcher:      deps.Matcher,
		asker:        deps.Asker,
		snapshots:    deps.Snapshots,
		monitor:      deps.Monitor,
		intents:      deps.Intents,
		detector:     deps.Detector,
		view:         deps.View,
		logger:       deps.Logger.WithComponent("assistant"),
		opts:         deps.Options,
		conversation: NewConversation(deps.View),
	}
	a.monitor.OnChange(a.onConnectivityChange)
	return a, nil
}

// Conversation returns the session's conversation.
func (a *Assistant) Conversation() *Conversation {
	return a.conversation
}

// Monitor returns the connectivity monitor.
func (a *Assistant) Monitor() *connectivity.Monitor {
	return a.monitor
}

// Status returns the current status line.
func (a *Assistant) Status() string {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	return a.status
}

func (a *Assistant) setStatus(text string) {
	a.statusMu.Lock()
	a.status = text
	a.statusMu.Unlock()
	a.view.SetStatus(a.monitor.IsOnline(), text)
}

// Handle routes one user input and records the exchange in the conversation.
func (a *Assistant) Handle(ctx context.Context, input string) Reply {
	query := strings.TrimSpace(input)
	if query == "" {
		return Reply{Kind: KindIgnored}
	}

	ctx = observability.ContextWithRequestID(ctx, uuid.NewString())
	log := a.logger.WithContext(ctx)

	a.conversation.Append(Message{Role: RoleUser, Text: query})

	locale := a.detector.Detect(query)
	reply := Reply{Locale: locale}

	if resp, ok := a.intents.Match(strings.ToLower(query), locale); ok {
		reply.Kind = KindIntent
		reply.Intent = resp.Intent
		reply.Message = a.conversation.Append(Message{Role: RoleBot, Text: resp.Text})
		log.Debug().Str("intent", resp.Intent).Str("locale", string(locale)).Msg("Small talk answered")
		return reply
	}

	if !a.monitor.IsOnline() {
		return a.answerOffline(ctx, query, reply)
	}
	return a.answerLive(ctx, query, reply)
}

func (a *Assistant) answerOffline(ctx context.Context, query string, reply Reply) Reply {
	log := a.logger.WithContext(ctx).WithOperation("offline_search")

	if a.opts.QueueOfflineQueries {
		if _, err := a.store.Enqueue(ctx, query); err != nil {
			log.Warn().Err(err).Msg("Failed to queue offline query")
		}
	}

	match, err := a.matcher.Match(ctx, query, reply.Locale)
	if err != nil {
		text := "Offline data is not ready."
		if !errors.Is(err, retrieval.ErrNotReady) {
			log.Error().Err(err).Msg("Offline search failed")
			text = "Error: " + domain.UserMessage(err)
		}
		reply.Kind = KindFailed
		reply.Message = a.conversation.Append(Message{Role: RoleError, Text: text})
		return reply
	}

	if match == nil {
		reply.Kind = KindNotFound
		reply.Message = a.conversation.Append(Message{Role: RoleError, Text: retrieval.NotFoundText(reply.Locale)})
		log.Debug().Msg("No offline match")
		return reply
	}

	answer := retrieval.Localize(match, reply.Locale)
	reply.Kind = KindOffline
	reply.Record = &match.Record
	reply.Message = a.conversation.Append(Message{
		Role:        RoleBot,
		Text:        answer.Text,
		Sources:     []string{answer.Source},
		Hash:        match.Record.Hash,
		OfflineNote: answer.Note,
	})
	log.Debug().Int64("record_id", match.Record.ID).Msg("Offline match served")
	return reply
}

func (a *Assistant) answerLive(ctx context.Context, query string, reply Reply) Reply {
	log := a.logger.WithContext(ctx).WithOperation("live_answer")
	placeholder := a.conversation.Append(Message{Role: RoleBot, Text: Placeholder, Loading: true})

	start := time.Now()
	answer, err := a.asker.Ask(ctx, query)
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Live answer failed")
		msg := Message{Role: RoleError, Text: "Error: " + domain.UserMessage(err)}
		a.conversation.Replace(placeholder.ID, msg)
		msg.ID = placeholder.ID
		reply.Kind = KindFailed
		reply.Message = msg
		return reply
	}

	msg := Message{Role: RoleBot, Text: answer.Text, Sources: answer.Sources, Hash: answer.Hash}
	a.conversation.Replace(placeholder.ID, msg)
	msg.ID = placeholder.ID
	reply.Kind = KindLive
	reply.Message = msg

	if rec, ok := a.learn(ctx, answer); ok {
		reply.Record = &rec
	}
	return reply
}

// learn appends a live answer to the local store. Failures are logged only.
func (a *Assistant) learn(ctx context.Context, answer *remote.Answer) (storage.Record, bool) {
	if !a.opts.LearnLiveAnswers || !answer.Learnable() {
		return storage.Record{}, false
	}
	log := a.logger.WithContext(ctx).WithOperation("learn")

	rec, err := a.store.Append(ctx, answer.Record())
	if errors.Is(err, storage.ErrConflict) {
		log.Debug().Str("query_en", answer.QueryEN).Msg("Answer already cached")
		return storage.Record{}, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to cache live answer")
		return storage.Record{}, false
	}

	if err := a.matcher.Add(rec); err != nil {
		log.Warn().Err(err).Int64("record_id", rec.ID).Msg("Failed to index learned answer")
	}
	log.Info().Int64("record_id", rec.ID).Str("query_en", rec.Query).Msg("Learned live answer")
	return rec, true
}

// Close releases the store and matcher when they hold resources.
func (a *Assistant) Close() error {
	var errs []error
	if c, ok := a.matcher.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := a.store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
