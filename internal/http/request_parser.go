// Package http provides the web server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data shared across the budget, calendar and wishlist handlers.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hearth/internal/calendar"
)

// MonthKey extracts the month being viewed from the "month" query parameter
// in YYYY-MM form. Anything unparseable normalizes to the current month, the
// same fallback the grid itself applies.
func MonthKey(query url.Values) string {
	return calendar.MonthStart(query.Get("month")).Format("2006-01")
}

// PrevNextMonthKeys returns the keys of the adjacent months for navigation.
func PrevNextMonthKeys(monthKey string) (prev, next string) {
	start := calendar.MonthStart(monthKey)
	return start.AddDate(0, -1, 0).Format("2006-01"), start.AddDate(0, 1, 0).Format("2006-01")
}

// DefaultedDate returns the trimmed "date" form value, or today when empty.
func DefaultedDate(form url.Values) string {
	if v := strings.TrimSpace(form.Get("date")); v != "" {
		return v
	}
	return time.Now().UTC().Format("2006-01-02")
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// IDList returns a key's value as a list of int64 ids. JSON arrays and
// comma-separated form values are both accepted; HTMX sortable posts the
// latter.
func (p *RequestBodyParser) IDList(key string) []int64 {
	var raw []string
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			if arr, ok := val.([]interface{}); ok {
				for _, v := range arr {
					raw = append(raw, stringValue(v))
				}
			}
		}
	} else if p.formData != nil {
		for _, v := range p.formData[key] {
			raw = append(raw, strings.Split(v, ",")...)
		}
	}

	var out []int64
	for _, s := range raw {
		if id := parseID(s); id != 0 {
			out = append(out, id)
		}
	}
	return out
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
