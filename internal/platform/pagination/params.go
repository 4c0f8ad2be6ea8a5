package pagination

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultLimit applies when the request carries no limit parameter.
	DefaultLimit = 50
	// MaxLimit caps the page size regardless of what the client asks for.
	MaxLimit = 500
)

// Params is a validated limit/offset pair extracted from query parameters.
type Params struct {
	Limit  int
	Offset int
}

// Error reports an invalid pagination parameter by name.
type Error struct {
	Param string
	Value string
}

func (e *Error) Error() string {
	return fmt.Sprintf("pagination: invalid %s %q", e.Param, e.Value)
}

// Parse extracts limit and offset query parameters, applying defaults and caps.
func Parse(r *http.Request) (Params, error) {
	params := Params{Limit: DefaultLimit}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Params{}, &Error{Param: "limit", Value: raw}
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}
		params.Limit = limit
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Params{}, &Error{Param: "offset", Value: raw}
		}
		params.Offset = offset
	}

	return params, nil
}
