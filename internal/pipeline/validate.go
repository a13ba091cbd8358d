package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput indicates the request was rejected before the pipeline
// ran. Callers should map it to a 400-class response.
var ErrInvalidInput = errors.New("invalid input")

// maxQueryLength bounds query size; anything longer is almost certainly
// pasted content rather than a question.
const maxQueryLength = 4000

// validateQuery normalizes and checks the raw query text.
func validateQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if len(query) > maxQueryLength {
		return "", fmt.Errorf("%w: query length %d exceeds %d characters", ErrInvalidInput, len(query), maxQueryLength)
	}
	return query, nil
}
