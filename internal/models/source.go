package models

import "time"

// Source is a persisted playlist origin (one M3U URL).
type Source struct {
	ID          int64      `json:"id,omitempty"`
	Name        string     `json:"name"`
	URL         string     `json:"url,omitempty"`
	SourceType  int16      `json:"source_type"`
	UserAgent   string     `json:"user_agent,omitempty"`
	Enabled     bool       `json:"enabled"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}
