package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Enqueue stores a query asked while offline so it can be replayed later.
func (s *Store) Enqueue(ctx context.Context, query string) (PendingQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return PendingQuery{}, ErrClosed
	}

	pq := PendingQuery{Query: strings.TrimSpace(query), CreatedAt: time.Now().UTC()}
	if pq.Query == "" {
		return PendingQuery{}, fmt.Errorf("query is required")
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pending_queries (query, created_at)
		VALUES ($1, $2)
		RETURNING id
	`, pq.Query, pq.CreatedAt).Scan(&pq.ID)
	if err != nil {
		return PendingQuery{}, fmt.Errorf("enqueue query: %w", err)
	}
	return pq, nil
}

// Pending lists queued queries, oldest first.
func (s *Store) Pending(ctx context.Context) ([]PendingQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, created_at FROM pending_queries ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var out []PendingQuery
	for rows.Next() {
		var pq PendingQuery
		if err := rows.Scan(&pq.ID, &pq.Query, &pq.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		out = append(out, pq)
	}
	return out, rows.Err()
}

// Dequeue removes a replayed query.
func (s *Store) Dequeue(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_queries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("dequeue query: %w", err)
	}
	return nil
}
