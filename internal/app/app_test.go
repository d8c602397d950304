package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishimitr/assistant/internal/config"
	"github.com/krishimitr/assistant/internal/language"
	"github.com/krishimitr/assistant/internal/observability"
)

func TestStoreOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = "/data/knowledge.db"

	opts := StoreOptions(cfg, "")
	assert.Equal(t, "sqlite", opts.Driver)
	assert.Equal(t, "/data/knowledge.db", opts.DSN)
	assert.Equal(t, "WAL", opts.JournalMode)

	assert.Equal(t, "/data/backend.db", StoreOptions(cfg, "/data/backend.db").DSN)

	cfg.Database.Driver = "postgres"
	cfg.Database.Postgres.DSN = "postgres://km@localhost/km"
	opts = StoreOptions(cfg, "/data/backend.db")
	assert.Equal(t, "postgres", opts.Driver)
	assert.Equal(t, "postgres://km@localhost/km", opts.DSN)
	assert.Equal(t, 5, opts.MaxOpenConns)
}

func TestOpenStore(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := OpenStore(context.Background(), cfg, filepath.Join(t.TempDir(), "km.db"), observability.Nop())
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIntentMatcher(t *testing.T) {
	cfg := config.DefaultConfig()

	resp, ok := IntentMatcher(cfg).Match("namaste", language.HI)
	require.True(t, ok, "built-in table when none configured")
	assert.Equal(t, "greetings", resp.Intent)

	cfg.Intents = []config.IntentConfig{
		{Name: "thanks", Keywords: []string{" Dhanyavad "}, EN: "You're welcome!", HI: "आपका स्वागत है!"},
	}
	m := IntentMatcher(cfg)

	resp, ok = m.Match("dhanyavad bhai", language.HI)
	require.True(t, ok)
	assert.Equal(t, "आपका स्वागत है!", resp.Text)

	_, ok = m.Match("namaste", language.HI)
	assert.False(t, ok, "configured table replaces the built-in one")
}

func TestCache(t *testing.T) {
	cfg := config.DefaultConfig()

	c, err := Cache(cfg)
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.Cache.Enabled = true
	c, err = Cache(cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NoError(t, c.Close())
}
