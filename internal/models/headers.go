package models

// ChannelHttpHeaders holds optional HTTP headers for a channel (from EXTVLCOPT).
type ChannelHttpHeaders struct {
	Referrer   string `json:"referrer,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	HTTPOrigin string `json:"http_origin,omitempty"`
}

// Empty reports whether no header was captured.
func (h *ChannelHttpHeaders) Empty() bool {
	return h == nil || (h.Referrer == "" && h.UserAgent == "" && h.HTTPOrigin == "")
}
