// Package validate checks records before they are scheduled for fetching.
package validate

import (
	"fmt"
	"net/url"
	"strings"

	"pricetracker/internal/model"
	"pricetracker/internal/price"
)

// Error describes why a record was rejected.
type Error struct {
	Field  string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

var schemes = map[string]bool{"http": true, "https": true}

// Record returns a *Error when r must not reach the fetcher.
// Locators are carried as strings by every store, so only URL and price are checked.
func Record(r model.Record) error {
	target := strings.TrimSpace(r.URL)
	if target == "" {
		return &Error{Field: "url", Value: r.URL, Reason: "empty"}
	}
	u, err := url.Parse(target)
	if err != nil {
		return &Error{Field: "url", Value: r.URL, Reason: err.Error()}
	}
	if !schemes[strings.ToLower(u.Scheme)] || u.Host == "" {
		return &Error{Field: "url", Value: r.URL, Reason: "must be an absolute http or https url"}
	}
	if _, _, err := price.ParseStored(r.Price); err != nil {
		return &Error{Field: "price", Value: r.Price, Reason: "not a decimal"}
	}
	return nil
}
