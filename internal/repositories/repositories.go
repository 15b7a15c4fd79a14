package repositories

import (
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/models"
)

// where builds the WHERE and LIMIT clauses for criteria. filterColumn receives Host or Provider,
// whichever the table supports.
func where(criteria models.Criteria, filterColumn, filterValue string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filterColumn != "" && filterValue != "" {
		clauses = append(clauses, filterColumn+" = ?")
		args = append(args, filterValue)
	}
	if criteria.Failed {
		clauses = append(clauses, "success = 0")
	}
	if !criteria.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, criteria.Since.UTC())
	}

	query := ""
	if len(clauses) > 0 {
		query = " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if criteria.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, criteria.Limit)
	}
	return query, args
}

func millis(d time.Duration) int64 { return d.Milliseconds() }

func fromMillis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
