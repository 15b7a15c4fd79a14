// package models defines persisted records and JSON:API documents
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidRecord = errors.New("invalid record")

// Model defines the base interface for all persisted records.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines data access for append-only log records.
type Repository[T Model] interface {
	Create(model T) error                // Create inserts a new model into the database
	Get(id string) (T, error)            // Get retrieves a model by its ID
	Delete(id string) error              // Delete removes a model from the database by its ID
	List(criteria Criteria) ([]T, error) // List retrieves models matching the criteria, newest first
	Clear() (int64, error)               // Clear removes every record and returns how many were removed
}

// Criteria filters List calls. Zero values match everything.
type Criteria struct {
	Host     string
	Provider string
	Failed   bool
	Since    time.Time
	Limit    int
}

// APICall is one outbound REST request.
type APICall struct {
	CallID       string
	Method       string
	URL          string
	Host         string
	Status       int
	Elapsed      time.Duration
	ResponseSize int64
	ContentType  string
	Success      bool
	ErrorMessage string
	Created      time.Time
}

func (c *APICall) ID() string           { return c.CallID }
func (c *APICall) CreatedAt() time.Time { return c.Created }

func (c *APICall) Validate() error {
	if c.CallID == "" {
		return fmt.Errorf("%w: api call id is required", ErrInvalidRecord)
	}
	if c.Method == "" || c.URL == "" {
		return fmt.Errorf("%w: api call needs method and url", ErrInvalidRecord)
	}
	return nil
}

// AIResult is one prompt dispatch.
type AIResult struct {
	ResultID     string
	Provider     string
	Model        string
	PromptHash   string
	Template     string
	Response     string
	Success      bool
	ErrorMessage string
	ResponseTime time.Duration
	Created      time.Time
}

func (r *AIResult) ID() string           { return r.ResultID }
func (r *AIResult) CreatedAt() time.Time { return r.Created }

func (r *AIResult) Validate() error {
	if r.ResultID == "" {
		return fmt.Errorf("%w: ai result id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Provider) == "" {
		return fmt.Errorf("%w: ai result needs a provider", ErrInvalidRecord)
	}
	return nil
}
