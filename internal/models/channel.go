package models

import "time"

// Status is the reachability state of a channel.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusChecking Status = "checking"
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
)

// Terminal reports whether a reachability pass has resolved the status.
func (s Status) Terminal() bool {
	return s == StatusOnline || s == StatusOffline
}

// Channel represents a single stream entry parsed from an M3U playlist.
// Status is the only field mutated after parsing (by the reachability checker).
type Channel struct {
	ID         int64               `json:"id,omitempty"`
	Name       string              `json:"name"`
	URL        string              `json:"url"`
	Logo       string              `json:"logo,omitempty"`
	Group      string              `json:"group,omitempty"`
	TvgID      string              `json:"tvg_id,omitempty"`
	TvgName    string              `json:"tvg_name,omitempty"`
	Language   string              `json:"language,omitempty"`
	Country    string              `json:"country,omitempty"`
	Status     Status              `json:"status"`
	StreamType StreamType          `json:"stream_type"`
	MimeHint   string              `json:"mime_hint,omitempty"`
	Headers    *ChannelHttpHeaders `json:"headers,omitempty"`
	SourceID   int64               `json:"source_id,omitempty"`
	GroupID    *int64              `json:"group_id,omitempty"`
	Position   int                 `json:"position,omitempty"`
	CheckedAt  *time.Time          `json:"checked_at,omitempty"`
}
