package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishimitr/assistant/internal/domain"
	"github.com/krishimitr/assistant/internal/storage"
)

func newTestService(t *testing.T, records ...storage.Record) *Service {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Options{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "backend.db"), MaxOpenConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(store, nil, nil, nil)
	_, err = svc.Load(ctx, records)
	require.NoError(t, err)
	return svc
}

func knowledgeBase() []storage.Record {
	return []storage.Record{
		{
			Content: "Tomato arrivals rose this week. The market price for Tomato in Azadpur is Rs 1800 per quintal. Prices may fall further.",
			Source:  "Agmarknet Portal",
		},
		{
			Content:   "Prepare raised beds before sowing. Transplant seedlings after 25 days. Water lightly every evening.",
			ContentHI: "बुवाई से पहले उठी हुई क्यारियाँ तैयार करें। 25 दिन बाद पौधे रोपें।",
			Source:    "KVK Advisory",
		},
		{
			Content: "The PM-KISAN scheme provides eligible farmers with an income support of Rs. 6,000 per year in three equal installments. Verification is done via Aadhaar.",
			Source:  "Government Policy Portal",
		},
	}
}

func TestService_Ask_PriceSummary(t *testing.T) {
	svc := newTestService(t, knowledgeBase()...)

	resp, err := svc.Ask(context.Background(), "Tamatar ka bhav")
	require.NoError(t, err)

	assert.Equal(t, "tomato ka price", resp.QueryEN)
	assert.Equal(t, "**Market Price Information:** The market price for Tomato in Azadpur is Rs 1800 per quintal.", resp.AnswerEN)
	assert.Equal(t, resp.AnswerEN, resp.Answer, "no hindi variant, falls back to english")
	assert.Equal(t, []string{"Agmarknet Portal"}, resp.Sources)
	assert.Equal(t, CacheHash(resp.QueryEN, resp.AnswerEN), resp.CacheHash)
}

func TestService_Ask_HindiVariant(t *testing.T) {
	svc := newTestService(t, knowledgeBase()...)

	resp, err := svc.Ask(context.Background(), "sowing seedlings kaise kare")
	require.NoError(t, err)

	assert.Equal(t, "**Guidance:** Prepare raised beds before sowing. Transplant seedlings after 25 days.", resp.AnswerEN)
	assert.Equal(t, "**Guidance:** बुवाई से पहले उठी हुई क्यारियाँ तैयार करें। 25 दिन बाद पौधे रोपें।", resp.AnswerHI)
	assert.Equal(t, resp.AnswerHI, resp.Answer)
}

func TestService_Ask_SmallTalk(t *testing.T) {
	svc := newTestService(t, knowledgeBase()...)

	resp, err := svc.Ask(context.Background(), "Namaste")
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते! मैं कैसे मदद कर सकता हूँ?", resp.Answer)
	assert.Equal(t, []string{ConversationalSource}, resp.Sources)
	assert.Empty(t, resp.QueryEN)
	assert.Empty(t, resp.CacheHash)
}

func TestService_Ask_NotFound(t *testing.T) {
	svc := newTestService(t, knowledgeBase()...)

	resp, err := svc.Ask(context.Background(), "xyz123")
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "could not find")
	assert.Empty(t, resp.QueryEN)
	assert.Empty(t, resp.AnswerEN)
	assert.Equal(t, []string{}, resp.Sources)
}

func TestService_Ask_Empty(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Ask(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestService_Snapshot(t *testing.T) {
	svc := newTestService(t, knowledgeBase()...)

	items, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Agmarknet Portal", items[0].Source)
	assert.True(t, strings.HasPrefix(items[1].ContentHI, "बुवाई"))
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		context  string
		expected string
	}{
		{
			"price without number falls through",
			"onion price",
			"Onion prices are stable. Demand is high. Supply is low.",
			"**Key Information:** Onion prices are stable. Demand is high.",
		},
		{
			"rate keyword",
			"wheat rate",
			"Wheat is in demand. MSP is Rs 2275 per quintal!",
			"**Market Price Information:** MSP is Rs 2275 per quintal!",
		},
		{
			"rupee abbreviation keeps sentence whole",
			"tomato price",
			"Supply improved. The market price for Tomato in Azadpur is Rs. 1800 per quintal. Arrivals rose.",
			"**Market Price Information:** The market price for Tomato in Azadpur is Rs. 1800 per quintal.",
		},
		{
			"how to single sentence",
			"how to apply urea",
			"Apply urea in two splits",
			"**Guidance:** Apply urea in two splits",
		},
		{"empty context", "soil test", "   ", fallbackSummary},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Summarize(tc.query, tc.context))
		})
	}
}

func TestCacheHash(t *testing.T) {
	assert.Equal(t, "c460deeab677e34b657519270a29b91544a6270226e2e8ed5c79012f7937e670", CacheHash("tomato price", "Rs 20"))
	assert.NotEqual(t, CacheHash("a", "b:c"), CacheHash("a:b", "d"))
}

func TestParseCSV(t *testing.T) {
	input := "\ufeffsource,content,content_hi,query_en\n" +
		"IMD Weather Portal,\"On 2024-01-05, Pune expects 12mm rainfall.\",,\n" +
		"Agmarknet Portal,Onion is Rs. 2100 per quintal.,प्याज 2100 रुपये प्रति क्विंटल।,onion price\n" +
		"Empty,,,\n"

	rows := 0
	records, stats, err := ParseCSV(strings.NewReader(input), func() { rows++ })
	require.NoError(t, err)

	assert.Equal(t, 3, rows)
	assert.Equal(t, ImportStats{Rows: 3, Skipped: 1}, stats)
	require.Len(t, records, 2)
	assert.Equal(t, "On 2024-01-05, Pune expects 12mm rainfall.", records[0].Content)
	assert.Equal(t, "", records[0].Query)
	assert.Equal(t, "onion price", records[1].Query)
	assert.Equal(t, "प्याज 2100 रुपये प्रति क्विंटल।", records[1].ContentHI)
}

func TestParseCSV_MinimalColumns(t *testing.T) {
	records, _, err := ParseCSV(strings.NewReader("content,source\nNeem oil controls aphids.,KVK\n"), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "KVK", records[0].Source)
}

func TestParseCSV_Errors(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader(""), nil)
	require.Error(t, err)

	_, _, err = ParseCSV(strings.NewReader("source,text\nx,y\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content")
}
