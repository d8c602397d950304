// Package app builds assistant components from configuration. Both binaries
// share it so the client and the dev backend read config the same way.
package app

import (
	"context"
	"io"
	"strings"

	"github.com/krishimitr/assistant/internal/cache"
	"github.com/krishimitr/assistant/internal/config"
	"github.com/krishimitr/assistant/internal/intent"
	"github.com/krishimitr/assistant/internal/language"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/storage"
)

// Version is reported by the version subcommands.
const Version = "0.3.0"

// NewLogger creates the logger described by cfg, writing to out.
func NewLogger(cfg *config.Config, service string, out io.Writer) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		Output:      out,
		ServiceName: service,
	})
}

// StoreOptions maps the database section onto store options. sqlitePath
// overrides the configured SQLite path when set.
func StoreOptions(cfg *config.Config, sqlitePath string) storage.Options {
	if cfg.Database.Driver == "postgres" {
		pg := cfg.Database.Postgres
		return storage.Options{
			Driver:          "postgres",
			DSN:             pg.DSN,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: pg.ConnMaxLifetime,
		}
	}

	path := cfg.Database.SQLite.Path
	if sqlitePath != "" {
		path = sqlitePath
	}
	return storage.Options{
		Driver:       "sqlite",
		DSN:          path,
		MaxOpenConns: cfg.Database.SQLite.MaxOpenConns,
		JournalMode:  cfg.Database.SQLite.JournalMode,
	}
}

// OpenStore opens the knowledge store at the configured location.
func OpenStore(ctx context.Context, cfg *config.Config, sqlitePath string, logger *observability.Logger) (*storage.Store, error) {
	return storage.Open(ctx, StoreOptions(cfg, sqlitePath), logger.WithComponent("storage"))
}

// IntentMatcher builds the small-talk matcher. A configured table replaces
// the built-in one.
func IntentMatcher(cfg *config.Config) *intent.Matcher {
	if len(cfg.Intents) == 0 {
		return intent.NewMatcher(nil)
	}

	entries := make([]intent.Entry, 0, len(cfg.Intents))
	for _, in := range cfg.Intents {
		responses := map[language.Locale]string{language.EN: in.EN}
		if strings.TrimSpace(in.HI) != "" {
			responses[language.HI] = in.HI
		}
		keywords := make([]string, 0, len(in.Keywords))
		for _, k := range in.Keywords {
			keywords = append(keywords, strings.ToLower(strings.TrimSpace(k)))
		}
		entries = append(entries, intent.Entry{
			Name:      in.Name,
			Keywords:  keywords,
			Responses: responses,
		})
	}
	return intent.NewMatcher(entries)
}

// Detector builds the locale detector.
func Detector(cfg *config.Config) *language.Detector {
	return language.NewDetector(cfg.Language.RomanizedKeywords)
}

// Cache returns the live answer cache, or nil when caching is disabled.
func Cache(cfg *config.Config) (cache.Client, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.New(cache.Options{
		Driver:     cfg.Cache.Driver,
		MaxEntries: cfg.Cache.MaxEntries,
		Redis: cache.RedisConfig{
			URL:      cfg.Cache.Redis.URL,
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		},
	})
}
