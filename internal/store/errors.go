package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenced is returned when a foreign key blocks a write or delete.
	ErrReferenced = errors.New("record is referenced")
)

const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
)

// translate maps driver errors onto the package sentinels and wraps the rest
// with the failing operation.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrReferenced)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
