package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/MedScribe/internal/domain"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// spokenAt stores an unknown fragment time as NULL.
func spokenAt(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// orEmpty keeps NOT NULL array columns and JSON output free of nulls.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// jsonbList encodes a response list column. A nil list is stored as '[]'.
func jsonbList[T any](column string, items []T) ([]byte, error) {
	data, err := json.Marshal(orEmpty(items))
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", column, err)
	}
	return data, nil
}

// decodeJSONBList is the inverse of jsonbList.
func decodeJSONBList[T any](column string, data []byte) ([]T, error) {
	var items []T
	if len(data) == 0 {
		return []T{}, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", column, err)
	}
	return orEmpty(items), nil
}

// notFoundWrap maps pgx.ErrNoRows to domain.ErrNotFound.
func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
