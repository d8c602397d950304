package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishimitr/assistant/internal/cache"
	"github.com/krishimitr/assistant/internal/domain"
	"github.com/krishimitr/assistant/internal/storage"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}

func TestClient_Ask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ask", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tamatar ka bhav", req.Query)

		writeJSON(w, http.StatusOK, AskResponse{
			Answer:    "**Market Price Information:** Tomato is Rs 20/kg.",
			Sources:   []string{"Agmarknet", "Mandi"},
			QueryEN:   "tomato price",
			AnswerEN:  "Tomato is Rs 20/kg.",
			AnswerHI:  "टमाटर 20 रुपये/किलो है।",
			CacheHash: "abc123",
		})
	})

	answer, err := c.Ask(context.Background(), "tamatar ka bhav")
	require.NoError(t, err)
	assert.Equal(t, "**Market Price Information:** Tomato is Rs 20/kg.", answer.Text)
	assert.Equal(t, []string{"Agmarknet", "Mandi"}, answer.Sources)
	assert.Equal(t, "abc123", answer.Hash)
	assert.True(t, answer.Learnable())

	rec := answer.Record()
	assert.Equal(t, storage.Record{
		Query:     "tomato price",
		Content:   "Tomato is Rs 20/kg.",
		ContentHI: "टमाटर 20 रुपये/किलो है।",
		Source:    "Agmarknet",
		Hash:      "abc123",
	}, rec)
}

func TestClient_Ask_DefaultsSources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"Sorry, I could not find that."}`))
	})

	answer, err := c.Ask(context.Background(), "xyz")
	require.NoError(t, err)
	assert.Equal(t, []string{}, answer.Sources)
	assert.False(t, answer.Learnable())
	assert.Equal(t, "Web", answer.Record().Source)
}

func TestClient_Ask_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected string
	}{
		{
			name: "error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Query cannot be empty"})
			},
			expected: "Query cannot be empty",
		},
		{
			name: "status only",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expected: "status 502",
		},
		{
			name: "missing answer",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{"sources": []string{"x"}})
			},
			expected: "response has no answer",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			expected: "unmarshal response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)
			_, err := c.Ask(context.Background(), "tomato")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeRemote))
			assert.Contains(t, domain.UserMessage(err), tc.expected)
		})
	}
}

func TestClient_Ask_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url}, nil)
	require.NoError(t, err)

	_, err = c.Ask(context.Background(), "tomato")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeRemote))
}

func TestClient_Snapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/knowledge-base", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"query_en":"tomato price","answer_en":"Rs 20/kg","answer_hi":"20 रुपये","source":"Web","hash":"h1"},
			{"content":"tomato price today is 20 rupees","content_hi":"","source":"Mandi"},
			{"source":"empty"}
		]`))
	})

	records, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, storage.Record{Query: "tomato price", Content: "Rs 20/kg", ContentHI: "20 रुपये", Source: "Web", Hash: "h1"}, records[0])
	assert.Equal(t, "tomato price today is 20 rupees", records[1].Content)
	assert.Equal(t, "Mandi", records[1].Source)
}

func TestClient_Snapshot_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "database locked"})
	})

	_, err := c.Snapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, "database locked", domain.UserMessage(err))
}

func TestClient_Snapshot_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"content":"onion price is 21 rupees","source":"Mandi"}]`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Retry:   RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond},
	}, nil)
	require.NoError(t, err)

	records, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Snapshot_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Retry:   RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond},
	}, nil)
	require.NoError(t, err)

	_, err = c.Snapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryConfig_Backoff(t *testing.T) {
	rc := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}.withDefaults()
	assert.Equal(t, time.Second, rc.backoff(0))
	assert.Equal(t, 4*time.Second, rc.backoff(2))
	assert.Equal(t, 5*time.Second, rc.backoff(6))
}

func TestClient_Ping(t *testing.T) {
	healthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, healthy.Ping(context.Background()))

	unhealthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := unhealthy.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConnectivity))
}

type countingAsker struct {
	calls  atomic.Int32
	answer *Answer
	err    error
}

func (c *countingAsker) Ask(context.Context, string) (*Answer, error) {
	c.calls.Add(1)
	return c.answer, c.err
}

func TestAnswerCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryClient(10)
	defer mem.Close()

	upstream := &countingAsker{answer: &Answer{Text: "Rs 20/kg", Sources: []string{"Mandi"}, QueryEN: "tomato price", AnswerEN: "Rs 20/kg"}}
	ac := NewAnswerCache(upstream, mem, time.Minute, nil)

	first, err := ac.Ask(ctx, "Tomato  Price")
	require.NoError(t, err)
	second, err := ac.Ask(ctx, "tomato price")
	require.NoError(t, err)

	assert.Equal(t, int32(1), upstream.calls.Load())
	assert.Equal(t, first, second)
}

func TestAnswerCache_Purge(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryClient(10)
	defer mem.Close()

	upstream := &countingAsker{answer: &Answer{Text: "Rs 20/kg", Sources: []string{"Mandi"}}}
	ac := NewAnswerCache(upstream, mem, time.Minute, nil)
	require.NoError(t, mem.Set(ctx, "other:key", []byte("kept"), time.Minute))

	_, err := ac.Ask(ctx, "tomato price")
	require.NoError(t, err)
	require.NoError(t, ac.Purge(ctx))
	_, err = ac.Ask(ctx, "tomato price")
	require.NoError(t, err)

	assert.Equal(t, int32(2), upstream.calls.Load())
	_, err = mem.Get(ctx, "other:key")
	assert.NoError(t, err)
}

func TestAnswerCache_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryClient(10)
	defer mem.Close()

	upstream := &countingAsker{err: errors.New("boom")}
	ac := NewAnswerCache(upstream, mem, time.Minute, nil)

	_, err := ac.Ask(ctx, "tomato")
	require.Error(t, err)
	_, err = ac.Ask(ctx, "tomato")
	require.Error(t, err)

	assert.Equal(t, int32(2), upstream.calls.Load())
	assert.Equal(t, 0, mem.Len())
}
