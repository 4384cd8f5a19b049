// Package filter holds the read-side views over a channel list: search,
// online-first ordering and offline hiding. Nothing here mutates its input.
package filter

import (
	"sort"
	"strings"

	"github.com/voyagen/streamscout/internal/models"
)

// Filter returns the channels whose name, group or URL contains term,
// case-insensitively. An empty (or blank) term returns every channel.
func Filter(channels []*models.Channel, term string) []*models.Channel {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]*models.Channel, 0, len(channels))
	for _, ch := range channels {
		if term == "" || matches(ch, term) {
			out = append(out, ch)
		}
	}
	return out
}

func matches(ch *models.Channel, term string) bool {
	return strings.Contains(strings.ToLower(ch.Name), term) ||
		strings.Contains(strings.ToLower(ch.Group), term) ||
		strings.Contains(strings.ToLower(ch.URL), term)
}

// SortOnlineFirst returns a copy with online channels first. Relative order
// within each partition is preserved.
func SortOnlineFirst(channels []*models.Channel) []*models.Channel {
	out := make([]*models.Channel, len(channels))
	copy(out, channels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status == models.StatusOnline && out[j].Status != models.StatusOnline
	})
	return out
}

// HideOffline drops channels whose status is offline.
func HideOffline(channels []*models.Channel) []*models.Channel {
	out := make([]*models.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Status != models.StatusOffline {
			out = append(out, ch)
		}
	}
	return out
}

// Counts tallies online and offline channels.
func Counts(channels []*models.Channel) (online, offline int) {
	for _, ch := range channels {
		switch ch.Status {
		case models.StatusOnline:
			online++
		case models.StatusOffline:
			offline++
		}
	}
	return online, offline
}

// ByStatus returns the channels with the given status.
func ByStatus(channels []*models.Channel, status models.Status) []*models.Channel {
	out := make([]*models.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Status == status {
			out = append(out, ch)
		}
	}
	return out
}
