package session

import (
	"time"

	"github.com/voyagen/streamscout/internal/filter"
	"github.com/voyagen/streamscout/internal/models"
)

// ExportChannel is one channel in the structured export.
type ExportChannel struct {
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Logo     string        `json:"logo,omitempty"`
	Group    string        `json:"group,omitempty"`
	TvgID    string        `json:"tvgId,omitempty"`
	TvgName  string        `json:"tvgName,omitempty"`
	Status   models.Status `json:"status"`
	MimeHint string        `json:"mimeHint,omitempty"`
}

// Export is the structured (JSON) form of a session.
type Export struct {
	Name          string          `json:"name"`
	Channels      []ExportChannel `json:"channels"`
	TotalChannels int             `json:"totalChannels"`
	OnlineCount   int             `json:"onlineCount"`
	OfflineCount  int             `json:"offlineCount"`
	ExportedAt    time.Time       `json:"exportedAt"`
}

// Export builds the structured export stamped with now.
func (s *Session) Export(now time.Time) Export {
	channels := s.Channels()
	online, offline := filter.Counts(channels)

	out := Export{
		Name:          s.Name,
		Channels:      make([]ExportChannel, len(channels)),
		TotalChannels: len(channels),
		OnlineCount:   online,
		OfflineCount:  offline,
		ExportedAt:    now.UTC(),
	}
	for i, ch := range channels {
		out.Channels[i] = ExportChannel{
			Name:     ch.Name,
			URL:      ch.URL,
			Logo:     ch.Logo,
			Group:    ch.Group,
			TvgID:    ch.TvgID,
			TvgName:  ch.TvgName,
			Status:   ch.Status,
			MimeHint: ch.MimeHint,
		}
	}
	return out
}
