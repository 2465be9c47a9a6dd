package blog

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/rotisserie/eris"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a post does not exist.
	ErrNotFound = eris.New("post not found")
	// ErrSlugTaken is returned when another post already uses the slug.
	ErrSlugTaken = eris.New("a post with this slug already exists")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = eris.New("invalid input")
	// ErrNoFields is returned by partial updates that change nothing.
	ErrNoFields = eris.New("no valid fields to update")
	// ErrGeneratorUnavailable is returned when AI generation is not configured.
	ErrGeneratorUnavailable = eris.New("post generator is not configured")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return true
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
