package remote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/krishimitr/assistant/internal/cache"
	"github.com/krishimitr/assistant/internal/observability"
)

// AnswerCache serves repeated questions from a cache before asking upstream.
type AnswerCache struct {
	next   Asker
	cache  cache.Client
	ttl    time.Duration
	logger *observability.Logger
}

// NewAnswerCache wraps next with a cache lookup.
func NewAnswerCache(next Asker, c cache.Client, ttl time.Duration, logger *observability.Logger) *AnswerCache {
	if logger == nil {
		logger = observability.Nop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnswerCache{next: next, cache: c, ttl: ttl, logger: logger.WithComponent("answer_cache")}
}

// Ask returns a cached answer when present, otherwise asks upstream and caches
// the result. Cache failures never fail the call.
func (a *AnswerCache) Ask(ctx context.Context, query string) (*Answer, error) {
	key := answerKey(query)

	if data, err := a.cache.Get(ctx, key); err == nil {
		var resp AskResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			if answer, err := resp.validate(); err == nil {
				a.logger.Debug().Str("key", key).Msg("Answer cache hit")
				return answer, nil
			}
		}
		_ = a.cache.Delete(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		a.logger.Warn().Err(err).Msg("Answer cache lookup failed")
	}

	answer, err := a.next.Ask(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(answer.wire()); err == nil {
		if err := a.cache.Set(ctx, key, data, a.ttl); err != nil {
			a.logger.Warn().Err(err).Msg("Answer cache store failed")
		}
	}
	return answer, nil
}

// Purge drops every cached answer.
func (a *AnswerCache) Purge(ctx context.Context) error {
	return a.cache.DeleteByPrefix(ctx, cache.Key(answerNamespace, ""))
}

const answerNamespace = "ask"

func answerKey(query string) string {
	return cache.Key(answerNamespace, strings.Join(strings.Fields(strings.ToLower(query)), " "))
}
