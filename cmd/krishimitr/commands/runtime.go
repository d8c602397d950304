package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/krishimitr/assistant/internal/app"
	"github.com/krishimitr/assistant/internal/assistant"
	"github.com/krishimitr/assistant/internal/cache"
	"github.com/krishimitr/assistant/internal/config"
	"github.com/krishimitr/assistant/internal/connectivity"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/remote"
	"github.com/krishimitr/assistant/internal/retrieval"
	"github.com/krishimitr/assistant/internal/storage"
	"github.com/krishimitr/assistant/internal/voice"
)

// runtime is the application context of one client invocation: every
// component is created once here and released by Close.
type runtime struct {
	store     *storage.Store
	client    *remote.Client
	cache     cache.Client
	monitor   *connectivity.Monitor
	assistant *assistant.Assistant
	voice     *voice.Session
}

func newRuntime(ctx context.Context, cfg *config.Config, view assistant.View, logger *observability.Logger) (*runtime, error) {
	store, err := app.OpenStore(ctx, cfg, "", logger)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	rt := &runtime{store: store}

	client, err := remote.NewClient(remote.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		HealthTimeout: cfg.API.HealthTimeout,
		Retry: remote.RetryConfig{
			MaxRetries:     cfg.API.SnapshotRetries,
			InitialBackoff: cfg.API.RetryBackoff,
		},
	}, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}
	rt.client = client

	var asker remote.Asker = client
	cacheClient, err := app.Cache(cfg)
	if err != nil {
		// The cache only saves round trips; run without it.
		logger.Warn().Err(err).Str("driver", cfg.Cache.Driver).Msg("Answer cache unavailable")
	} else if cacheClient != nil {
		rt.cache = cacheClient
		asker = remote.NewAnswerCache(client, cacheClient, cfg.Cache.TTL, logger)
	}

	matcher, err := retrieval.New(cfg.Retrieval.Matcher, store, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create offline matcher: %w", err)
	}

	// The first check sets the initial state without a transition, so Start
	// makes the one on-open resync.
	online := client.Ping(ctx) == nil
	rt.monitor = connectivity.NewMonitor(
		connectivity.HealthCheckFunc(client.Ping),
		cfg.Connectivity.PollInterval,
		online,
		logger,
	)

	a, err := assistant.New(assistant.Deps{
		Store:     store,
		Matcher:   matcher,
		Asker:     asker,
		Snapshots: client,
		Monitor:   rt.monitor,
		Intents:   app.IntentMatcher(cfg),
		Detector:  app.Detector(cfg),
		View:      view,
		Logger:    logger,
		Options: assistant.Options{
			LearnLiveAnswers:    cfg.Sync.LearnLiveAnswers,
			QueueOfflineQueries: cfg.Sync.QueueOfflineQueries,
			ReplayInterval:      cfg.Sync.ReplayInterval,
		},
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.assistant = a

	if cfg.VoiceEnabled() {
		rt.voice = voice.NewSession(&voice.ExecRecognizer{
			Command: cfg.Voice.Command,
			Args:    cfg.Voice.Args,
			Timeout: cfg.Voice.Timeout,
		}, logger)
	}

	return rt, nil
}

// start performs the on-open resync or offline notice, then replays queries
// left over from an earlier offline session.
func (rt *runtime) start(ctx context.Context) error {
	if err := rt.assistant.Start(ctx); err != nil {
		return err
	}
	if rt.monitor.IsOnline() {
		if _, err := rt.assistant.ReplayOutbox(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the store, matcher and cache.
func (rt *runtime) Close() error {
	var errs []error
	if rt.voice != nil {
		rt.voice.Wait()
	}
	if rt.assistant != nil {
		errs = append(errs, rt.assistant.Close())
	} else if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.cache != nil {
		errs = append(errs, rt.cache.Close())
	}
	return errors.Join(errs...)
}
