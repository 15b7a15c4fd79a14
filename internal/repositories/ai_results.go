package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
)

// AIResultRepository implements [models.Repository] for [models.AIResult] history.
type AIResultRepository struct {
	db *sql.DB
}

// NewAIResultRepository creates a new [AIResultRepository] with the given database connection
func NewAIResultRepository(db *sql.DB) *AIResultRepository {
	return &AIResultRepository{db: db}
}

const resultColumns = `id, provider, model, prompt_hash, template, response, success, error_message, response_time_ms, created_at`

// Create inserts a result, assigning an ID and timestamp when they are unset
func (r *AIResultRepository) Create(res *models.AIResult) error {
	if res.ResultID == "" {
		res.ResultID = shared.GenerateID()
	}
	if res.Created.IsZero() {
		res.Created = time.Now().UTC()
	}
	if err := res.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO ai_results (` + resultColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		res.ResultID,
		res.Provider,
		res.Model,
		res.PromptHash,
		res.Template,
		res.Response,
		res.Success,
		res.ErrorMessage,
		millis(res.ResponseTime),
		res.Created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ai result: %w", err)
	}
	return nil
}

// Get retrieves a result by ID
func (r *AIResultRepository) Get(id string) (*models.AIResult, error) {
	row := r.db.QueryRow(`SELECT `+resultColumns+` FROM ai_results WHERE id = ?`, id)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ai result %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ai result: %w", err)
	}
	return res, nil
}

// Delete removes a result by ID
func (r *AIResultRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM ai_results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ai result: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: ai result %s", shared.ErrNotFound, id)
	}
	return nil
}

// List retrieves results matching criteria, newest first. Criteria.Provider filters by provider.
func (r *AIResultRepository) List(criteria models.Criteria) ([]*models.AIResult, error) {
	clause, args := where(criteria, "provider", criteria.Provider)
	rows, err := r.db.Query(`SELECT `+resultColumns+` FROM ai_results`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai results: %w", err)
	}
	defer rows.Close()

	var results []*models.AIResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ai result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

// Clear removes every result
func (r *AIResultRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM ai_results`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear ai results: %w", err)
	}
	return result.RowsAffected()
}

func scanResult(s scanner) (*models.AIResult, error) {
	var (
		res     models.AIResult
		elapsed int64
	)
	err := s.Scan(
		&res.ResultID,
		&res.Provider,
		&res.Model,
		&res.PromptHash,
		&res.Template,
		&res.Response,
		&res.Success,
		&res.ErrorMessage,
		&elapsed,
		&res.Created,
	)
	if err != nil {
		return nil, err
	}
	res.ResponseTime = fromMillis(elapsed)
	return &res, nil
}
