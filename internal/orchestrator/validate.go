package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/council/internal/roles"
)

const (
	// DefaultMaxQueryLength is the query limit in runes when none is configured.
	DefaultMaxQueryLength = 8000

	maxRequirements = 50
)

// ValidateRequest checks a request before a session is created.
// Every failure wraps ErrInvalidRequest.
func ValidateRequest(req Request, maxQueryLength int) error {
	if maxQueryLength <= 0 {
		maxQueryLength = DefaultMaxQueryLength
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(query); n > maxQueryLength {
		return fmt.Errorf("%w: query is %d characters (max %d)", ErrInvalidRequest, n, maxQueryLength)
	}

	if n := len(req.Context.Requirements); n > maxRequirements {
		return fmt.Errorf("%w: %d requirements (max %d)", ErrInvalidRequest, n, maxRequirements)
	}

	for role := range req.Options.CustomPrompts {
		if !roles.Valid(role) {
			return fmt.Errorf("%w: custom prompt for unknown role %q", ErrInvalidRequest, role)
		}
	}

	return nil
}
