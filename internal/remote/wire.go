package remote

import (
	"errors"
	"strings"

	"github.com/krishimitr/assistant/internal/storage"
)

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse is the wire form of a live answer.
type AskResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	QueryEN   string   `json:"query_en,omitempty"`
	AnswerEN  string   `json:"answer_en,omitempty"`
	AnswerHI  string   `json:"answer_hi,omitempty"`
	CacheHash string   `json:"cache_hash,omitempty"`
}

// ErrorResponse is the body of a non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SnapshotItem is one knowledge base row as served by GET /api/knowledge-base.
// Both the learned-answer and the ingested-document key sets are accepted.
type SnapshotItem struct {
	QueryEN   string `json:"query_en,omitempty"`
	AnswerEN  string `json:"answer_en,omitempty"`
	AnswerHI  string `json:"answer_hi,omitempty"`
	Content   string `json:"content,omitempty"`
	ContentHI string `json:"content_hi,omitempty"`
	Source    string `json:"source,omitempty"`
	Hash      string `json:"hash,omitempty"`
}

// Answer is a validated live answer.
type Answer struct {
	Text     string
	Sources  []string
	QueryEN  string
	AnswerEN string
	AnswerHI string
	Hash     string
}

// Learnable reports whether the answer carries the fields needed to store it.
func (a *Answer) Learnable() bool {
	return a.QueryEN != "" && a.AnswerEN != ""
}

// Record converts a learnable answer into a store record. The first source
// names the provenance, defaulting to "Web".
func (a *Answer) Record() storage.Record {
	source := "Web"
	if len(a.Sources) > 0 && strings.TrimSpace(a.Sources[0]) != "" {
		source = a.Sources[0]
	}
	return storage.Record{
		Query:     a.QueryEN,
		Content:   a.AnswerEN,
		ContentHI: a.AnswerHI,
		Source:    source,
		Hash:      a.Hash,
	}
}

var errMissingAnswer = errors.New("response has no answer")

func (r *AskResponse) validate() (*Answer, error) {
	if strings.TrimSpace(r.Answer) == "" {
		return nil, errMissingAnswer
	}
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	return &Answer{
		Text:     r.Answer,
		Sources:  sources,
		QueryEN:  strings.TrimSpace(r.QueryEN),
		AnswerEN: strings.TrimSpace(r.AnswerEN),
		AnswerHI: strings.TrimSpace(r.AnswerHI),
		Hash:     r.CacheHash,
	}, nil
}

func (a *Answer) wire() AskResponse {
	return AskResponse{
		Answer:    a.Text,
		Sources:   a.Sources,
		QueryEN:   a.QueryEN,
		AnswerEN:  a.AnswerEN,
		AnswerHI:  a.AnswerHI,
		CacheHash: a.Hash,
	}
}

// record maps a snapshot item onto a store record. Items without content
// report false.
func (it SnapshotItem) record() (storage.Record, bool) {
	content := it.AnswerEN
	if content == "" {
		content = it.Content
	}
	contentHI := it.AnswerHI
	if contentHI == "" {
		contentHI = it.ContentHI
	}
	rec := storage.Record{
		Query:     it.QueryEN,
		Content:   content,
		ContentHI: contentHI,
		Source:    it.Source,
		Hash:      it.Hash,
	}.Normalize()
	return rec, rec.Content != ""
}
