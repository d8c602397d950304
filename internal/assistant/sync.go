package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/krishimitr/assistant/internal/domain"
)

type purger interface {
	Purge(ctx context.Context) error
}

// Status texts.
const (
	StatusOffline = "Offline mode."
	statusReady   = "Offline data ready (%d records)."
)

// Start loads local data into the matcher, then resyncs when online or shows
// the offline notice otherwise.
func (a *Assistant) Start(ctx context.Context) error {
	if err := a.matcher.Rebuild(ctx); err != nil {
		return domain.StoreError("load offline data", err)
	}

	if !a.monitor.IsOnline() {
		a.setStatus(StatusOffline)
		return nil
	}

	if _, err := a.Resync(ctx); err != nil {
		// Local data stays usable; the next online transition retries.
		if n, cerr := a.store.Count(ctx); cerr == nil {
			a.setStatus(fmt.Sprintf(statusReady, n))
		}
	}
	return nil
}

// Resync replaces the local store with the server snapshot and reports how
// many records were stored.
func (a *Assistant) Resync(ctx context.Context) (int, error) {
	log := a.logger.WithContext(ctx).WithOperation("resync")
	start := time.Now()

	records, err := a.snapshots.Snapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Snapshot fetch failed")
		return 0, err
	}

	n, err := a.store.ReplaceAll(ctx, records)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot store failed")
		return 0, domain.StoreError("replace knowledge base", err)
	}

	if err := a.matcher.Rebuild(ctx); err != nil {
		log.Error().Err(err).Msg("Offline index rebuild failed")
		return n, domain.StoreError("rebuild offline index", err)
	}

	// Cached live answers predate the snapshot.
	if p, ok := a.asker.(purger); ok {
		if err := p.Purge(ctx); err != nil {
			log.Warn().Err(err).Msg("Answer cache purge failed")
		}
	}

	a.setStatus(fmt.Sprintf(statusReady, n))
	log.Info().
		Int("records", n).
		Int("received", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Offline data synced")
	return n, nil
}

// ReplayOutbox asks every queued offline query live, learns the answers and
// removes what succeeded. Failed queries stay queued. It stops early when the
// connection drops or ctx ends.
func (a *Assistant) ReplayOutbox(ctx context.Context) (int, error) {
	log := a.logger.WithContext(ctx).WithOperation("replay_outbox")

	pending, err := a.store.Pending(ctx)
	if err != nil {
		return 0, domain.StoreError("read outbox", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	log.Info().Int("queued", len(pending)).Msg("Replaying offline queries")

	replayed := 0
	for i, pq := range pending {
		if i > 0 && a.opts.ReplayInterval > 0 {
			select {
			case <-ctx.Done():
				return replayed, ctx.Err()
			case <-time.After(a.opts.ReplayInterval):
			}
		}
		if ctx.Err() != nil {
			return replayed, ctx.Err()
		}
		if !a.monitor.IsOnline() {
			log.Info().Int("remaining", len(pending)-i).Msg("Went offline during replay")
			break
		}

		answer, err := a.asker.Ask(ctx, pq.Query)
		if err != nil {
			log.Warn().Err(err).Int64("pending_id", pq.ID).Msg("Replay failed, keeping query queued")
			continue
		}
		a.learn(ctx, answer)

		if err := a.store.Dequeue(ctx, pq.ID); err != nil {
			log.Warn().Err(err).Int64("pending_id", pq.ID).Msg("Failed to dequeue replayed query")
			continue
		}
		replayed++
	}

	log.Info().Int("replayed", replayed).Int("failed", len(pending)-replayed).Msg("Outbox replay finished")
	return replayed, nil
}

func (a *Assistant) onConnectivityChange(ctx context.Context, online bool) {
	if !online {
		a.setStatus(StatusOffline)
		return
	}

	if _, err := a.Resync(ctx); err != nil {
		a.setStatus("Sync failed: " + domain.UserMessage(err))
	}
	if _, err := a.ReplayOutbox(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Outbox replay aborted")
	}
}
