package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "knowledge.db")
	store, err := Open(context.Background(), Options{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1, JournalMode: "WAL"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecords() []Record {
	return []Record{
		{Query: "tomato price", Content: "Tomato price is Rs 20/kg", ContentHI: "टमाटर का भाव 20 रुपये/किलो", Source: "mandi", Hash: "h1"},
		{Query: "onion price", Content: "Onion price is Rs 30/kg", Source: "mandi", Hash: "h2"},
		{Content: "Apply neem oil against aphids.", Source: "kvk"},
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	store := openTestStore(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0002_pending_queries.sql", version)
	assert.Equal(t, "sqlite", store.Driver())
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "knowledge.db")

	store, err := Open(ctx, Options{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	_, err = store.ReplaceAll(ctx, sampleRecords())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, Options{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	inserted, err := store.ReplaceAll(ctx, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	records, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "tomato price", records[0].Query)
	assert.Equal(t, "टमाटर का भाव 20 रुपये/किलो", records[0].ContentHI)
	assert.Equal(t, "", records[2].Query)
	assert.Less(t, records[0].ID, records[1].ID)

	// Second snapshot fully replaces the first.
	inserted, err = store.ReplaceAll(ctx, []Record{{Query: "wheat msp", Content: "MSP for wheat is Rs 2275/quintal", Source: "gov"}})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	records, err = store.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "wheat msp", records[0].Query)
}

func TestStore_ReplaceAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.ReplaceAll(ctx, sampleRecords())
	require.NoError(t, err)
	first, err := store.All(ctx)
	require.NoError(t, err)

	_, err = store.ReplaceAll(ctx, sampleRecords())
	require.NoError(t, err)
	second, err := store.All(ctx)
	require.NoError(t, err)

	ignoreID := cmpopts.IgnoreFields(Record{}, "ID")
	if diff := cmp.Diff(first, second, ignoreID); diff != "" {
		t.Errorf("records differ after identical resync (-first +second):\n%s", diff)
	}
}

func TestStore_ReplaceAll_SkipsDuplicatesAndEmpty(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	inserted, err := store.ReplaceAll(ctx, []Record{
		{Query: "tomato price", Content: "first", Source: "a"},
		{Query: "tomato price", Content: "second", Source: "b"},
		{Query: "blank", Content: "   "},
		{Content: "no query one"},
		{Content: "no query two"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	records, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "first", records[0].Content)
}

func TestStore_Append(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.ReplaceAll(ctx, sampleRecords())
	require.NoError(t, err)

	rec, err := store.Append(ctx, Record{Query: " wheat msp ", Content: "Rs 2275", Source: "Web", Hash: "abc"})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "wheat msp", rec.Query)

	records, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, rec, records[3])
}

func TestStore_Append_Conflict(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Append(ctx, Record{Query: "tomato price", Content: "Rs 20"})
	require.NoError(t, err)

	_, err = store.Append(ctx, Record{Query: "tomato price", Content: "Rs 25"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Append_RequiresContent(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Append(context.Background(), Record{Query: "empty"})
	require.Error(t, err)
}

func TestStore_ConcurrentAppendAndReplace(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.ReplaceAll(ctx, sampleRecords())
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = store.Append(ctx, Record{Content: "learned", Source: "Web"})
		}(i)
	}
	wg.Wait()

	records, err := store.All(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), 3)
	seen := map[string]int{}
	for _, r := range records {
		if r.Query != "" {
			seen[r.Query]++
		}
	}
	for q, n := range seen {
		assert.Equal(t, 1, n, "query %q stored more than once", q)
	}
}

func TestStore_Closed(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.All(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Append(context.Background(), Record{Content: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOutbox(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first, err := store.Enqueue(ctx, " tomato price ")
	require.NoError(t, err)
	assert.Equal(t, "tomato price", first.Query)
	second, err := store.Enqueue(ctx, "onion price")
	require.NoError(t, err)

	_, err = store.Enqueue(ctx, "   ")
	require.Error(t, err)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "onion price", pending[1].Query)
	assert.False(t, pending[0].CreatedAt.IsZero())

	require.NoError(t, store.Dequeue(ctx, first.ID))

	pending, err = store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestRecord_SearchText(t *testing.T) {
	assert.Equal(t, "tomato price Rs 20", Record{Query: "tomato price", Content: "Rs 20"}.SearchText())
	assert.Equal(t, "Rs 20", Record{Content: "Rs 20"}.SearchText())
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\n\n CREATE INDEX i ON a(x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, stmts)
}
