// Package storage provides the local knowledge store: cached question/answer
// records, the offline outbox, and their schema migrations.
package storage

import (
	"strings"
	"time"
)

// Record is a cached knowledge base entry.
type Record struct {
	ID        int64  `json:"id"`
	Query     string `json:"query_en,omitempty"`
	Content   string `json:"content"`
	ContentHI string `json:"content_hi,omitempty"`
	Source    string `json:"source"`
	Hash      string `json:"hash,omitempty"`
}

// SearchText is the text offline matching runs against: the question followed
// by the answer.
func (r Record) SearchText() string {
	if r.Query == "" {
		return r.Content
	}
	return r.Query + " " + r.Content
}

// Normalize trims whitespace from every text field.
func (r Record) Normalize() Record {
	r.Query = strings.TrimSpace(r.Query)
	r.Content = strings.TrimSpace(r.Content)
	r.ContentHI = strings.TrimSpace(r.ContentHI)
	r.Source = strings.TrimSpace(r.Source)
	r.Hash = strings.TrimSpace(r.Hash)
	return r
}

// PendingQuery is a question asked while offline, waiting for a live answer.
type PendingQuery struct {
	ID        int64
	Query     string
	CreatedAt time.Time
}
