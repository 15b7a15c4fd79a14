package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
)

// CallRepository implements [models.Repository] for [models.APICall] history.
type CallRepository struct {
	db *sql.DB
}

// NewCallRepository creates a new [CallRepository] with the given database connection
func NewCallRepository(db *sql.DB) *CallRepository {
	return &CallRepository{db: db}
}

const callColumns = `id, method, url, host, status, elapsed_ms, response_size, content_type, success, error_message, created_at`

// Create inserts a call, assigning an ID and timestamp when they are unset
func (r *CallRepository) Create(call *models.APICall) error {
	if call.CallID == "" {
		call.CallID = shared.GenerateID()
	}
	if call.Created.IsZero() {
		call.Created = time.Now().UTC()
	}
	if err := call.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO api_calls (` + callColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		call.CallID,
		call.Method,
		call.URL,
		call.Host,
		call.Status,
		millis(call.Elapsed),
		call.ResponseSize,
		call.ContentType,
		call.Success,
		call.ErrorMessage,
		call.Created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert api call: %w", err)
	}
	return nil
}

// Get retrieves a call by ID
func (r *CallRepository) Get(id string) (*models.APICall, error) {
	row := r.db.QueryRow(`SELECT `+callColumns+` FROM api_calls WHERE id = ?`, id)
	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: api call %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query api call: %w", err)
	}
	return call, nil
}

// Delete removes a call by ID
func (r *CallRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM api_calls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api call: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: api call %s", shared.ErrNotFound, id)
	}
	return nil
}

// List retrieves calls matching criteria, newest first. Criteria.Host filters by host.
func (r *CallRepository) List(criteria models.Criteria) ([]*models.APICall, error) {
	clause, args := where(criteria, "host", criteria.Host)
	rows, err := r.db.Query(`SELECT `+callColumns+` FROM api_calls`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query api calls: %w", err)
	}
	defer rows.Close()

	var calls []*models.APICall
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api call: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return calls, nil
}

// Clear removes every call
func (r *CallRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM api_calls`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear api calls: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(s scanner) (*models.APICall, error) {
	var (
		call    models.APICall
		elapsed int64
	)
	err := s.Scan(
		&call.CallID,
		&call.Method,
		&call.URL,
		&call.Host,
		&call.Status,
		&elapsed,
		&call.ResponseSize,
		&call.ContentType,
		&call.Success,
		&call.ErrorMessage,
		&call.Created,
	)
	if err != nil {
		return nil, err
	}
	call.Elapsed = fromMillis(elapsed)
	return &call, nil
}
