package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pricelift/webhook-service/internal/domain"
)

// AttemptRecord holds data for inserting a delivery attempt.
type AttemptRecord struct {
	EventID        string
	EndpointID     string
	EventType      domain.EventType
	DeliveryID     string
	AttemptNumber  int
	Status         string
	HTTPStatusCode *int
	ResponseBody   string
	ResponseTimeMs int
	ErrorMessage   string
	NextRetryAt    *time.Time
}

// RecordAttempt appends one delivery attempt. Append-only: attempts
// are never updated or deleted here.
func (s *PostgresStore) RecordAttempt(ctx context.Context, rec AttemptRecord) error {
	var respBody *string
	if rec.ResponseBody != "" {
		respBody = &rec.ResponseBody
	}

	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_attempts
			(event_id, endpoint_id, event_type, delivery_id, attempt_number, status,
			 http_status_code, response_body, response_time_ms, error_message, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.EventID, rec.EndpointID, string(rec.EventType), rec.DeliveryID, rec.AttemptNumber,
		rec.Status, rec.HTTPStatusCode, respBody, rec.ResponseTimeMs, errMsg, rec.NextRetryAt)
	if err != nil {
		return fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns the newest attempts for one endpoint, the
// feed behind the "recent deliveries" view.
func (s *PostgresStore) RecentAttempts(ctx context.Context, endpointID string, limit int) ([]domain.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.ListAttempts(ctx, AttemptFilter{EndpointID: endpointID, Limit: limit})
}

// AttemptFilter narrows ListAttempts. Zero values mean "any".
type AttemptFilter struct {
	EventID    string
	EndpointID string
	Status     string
	Limit      int
}

// ListAttempts returns delivery attempts, newest first.
func (s *PostgresStore) ListAttempts(ctx context.Context, f AttemptFilter) ([]domain.DeliveryAttempt, error) {
	query := `
		SELECT id, event_id, endpoint_id, event_type, delivery_id, attempt_number, status,
		       http_status_code, response_body, response_time_ms, error_message, next_retry_at, created_at
		FROM delivery_attempts`
	args := []any{}
	conditions := []string{}

	if f.EventID != "" {
		args = append(args, f.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if f.EndpointID != "" {
		args = append(args, f.EndpointID)
		conditions = append(conditions, fmt.Sprintf("endpoint_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY created_at DESC"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.DeliveryAttempt{}
	for rows.Next() {
		var a domain.DeliveryAttempt
		err := rows.Scan(
			&a.ID, &a.EventID, &a.EndpointID, &a.EventType, &a.DeliveryID, &a.AttemptNumber,
			&a.Status, &a.HTTPStatusCode, &a.ResponseBody, &a.ResponseTimeMs,
			&a.ErrorMessage, &a.NextRetryAt, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	return attempts, nil
}

// GetAttempt returns a single delivery attempt by ID, nil when absent.
func (s *PostgresStore) GetAttempt(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	err := s.pool.QueryRow(ctx, `
		SELECT id, event_id, endpoint_id, event_type, delivery_id, attempt_number, status,
		       http_status_code, response_body, response_time_ms, error_message, next_retry_at, created_at
		FROM delivery_attempts WHERE id = $1
	`, id).Scan(
		&a.ID, &a.EventID, &a.EndpointID, &a.EventType, &a.DeliveryID, &a.AttemptNumber,
		&a.Status, &a.HTTPStatusCode, &a.ResponseBody, &a.ResponseTimeMs,
		&a.ErrorMessage, &a.NextRetryAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery attempt: %w", err)
	}
	return &a, nil
}

// DeadLetterRecord holds data for inserting a dead letter entry.
type DeadLetterRecord struct {
	EventID        string
	EndpointID     string
	TotalAttempts  int
	LastHTTPStatus *int
	LastError      string
}

// InsertDeadLetter records a delivery that exhausted its retry budget.
func (s *PostgresStore) InsertDeadLetter(ctx context.Context, rec DeadLetterRecord) error {
	var lastErr *string
	if rec.LastError != "" {
		lastErr = &rec.LastError
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letters (event_id, endpoint_id, total_attempts, last_http_status, last_error)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.EventID, rec.EndpointID, rec.TotalAttempts, rec.LastHTTPStatus, lastErr)
	if err != nil {
		return fmt.Errorf("inserting dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns dead letter entries, optionally scoped to an
// endpoint, unresolved ones by default.
func (s *PostgresStore) ListDeadLetters(ctx context.Context, endpointID string, resolved bool, limit int) ([]domain.DeadLetter, error) {
	query := `
		SELECT id, event_id, endpoint_id, total_attempts, last_error, last_http_status,
		       created_at, resolved_at, resolved_by
		FROM dead_letters`
	args := []any{}

	if endpointID != "" {
		args = append(args, endpointID)
		query += fmt.Sprintf(" WHERE endpoint_id = $%d", len(args))
	} else {
		query += " WHERE true"
	}

	if resolved {
		query += " AND resolved_at IS NOT NULL"
	} else {
		query += " AND resolved_at IS NULL"
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	defer rows.Close()

	letters := []domain.DeadLetter{}
	for rows.Next() {
		var dl domain.DeadLetter
		err := rows.Scan(
			&dl.ID, &dl.EventID, &dl.EndpointID, &dl.TotalAttempts,
			&dl.LastError, &dl.LastHTTPStatus, &dl.CreatedAt,
			&dl.ResolvedAt, &dl.ResolvedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		letters = append(letters, dl)
	}

	return letters, nil
}

// ResolveDeadLetter marks a dead letter as handled.
func (s *PostgresStore) ResolveDeadLetter(ctx context.Context, id, resolvedBy string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dead_letters SET resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND resolved_at IS NULL
	`, id, resolvedBy)
	if err != nil {
		return fmt.Errorf("resolving dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
