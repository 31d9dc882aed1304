// Package domain contains core domain types for the sitecraft application.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WebsiteType is the kind of website the generator should produce.
type WebsiteType string

const (
	WebsitePortfolio   WebsiteType = "portfolio"
	WebsiteEcommerce   WebsiteType = "ecommerce"
	WebsiteBlog        WebsiteType = "blog"
	WebsiteLandingPage WebsiteType = "landing_page"
)

// DefaultWebsiteType is the type selected on a fresh form.
const DefaultWebsiteType = WebsiteLandingPage

// WebsiteTypes lists the supported types in the order the form offers them.
var WebsiteTypes = []WebsiteType{
	WebsiteLandingPage,
	WebsitePortfolio,
	WebsiteBlog,
	WebsiteEcommerce,
}

// Valid reports whether t is one of the supported website types.
func (t WebsiteType) Valid() bool {
	switch t {
	case WebsitePortfolio, WebsiteEcommerce, WebsiteBlog, WebsiteLandingPage:
		return true
	}
	return false
}

// Label returns the human readable form, e.g. "landing page".
func (t WebsiteType) Label() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// ParseWebsiteType validates a raw website type string.
func ParseWebsiteType(s string) (WebsiteType, error) {
	t := WebsiteType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown website type %q", s)
	}
	return t, nil
}

// ID identifies a generated website or project. The backend emits integer
// ids; the client carries them as opaque strings.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a string.
func (id ID) String() string { return string(id) }

// Timestamp keeps the backend's literal timestamp so records can be copied
// between shapes without reformatting.
type Timestamp string

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Time parses the timestamp. Naive timestamps are read as UTC.
func (ts Timestamp) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(ts))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewTimestamp formats t in RFC 3339.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(time.RFC3339Nano))
}

// GenerationRequest is the payload sent to the generator. It is built fresh
// for every submission.
type GenerationRequest struct {
	UserPrompt  string      `json:"user_prompt"`
	WebsiteType WebsiteType `json:"website_type"`
	Title       string      `json:"title,omitempty"`
}

// GeneratedWebsite is a generated bundle, either fresh from the generator or
// rebuilt from a stored project.
type GeneratedWebsite struct {
	ID          ID          `json:"id"`
	Title       string      `json:"title"`
	WebsiteType WebsiteType `json:"website_type"`
	HTML        string      `json:"html"`
	CSS         string      `json:"css"`
	JavaScript  string      `json:"javascript,omitempty"`
	CreatedAt   Timestamp   `json:"created_at"`
}

// HasScript reports whether the bundle carries any JavaScript.
func (w *GeneratedWebsite) HasScript() bool {
	return w.JavaScript != ""
}
