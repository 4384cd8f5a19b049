package m3u

import (
	"fmt"
	"io"
	"strings"

	"github.com/voyagen/streamscout/internal/models"
)

// Stats describes one parse run.
type Stats struct {
	InfoLines  int // #EXTINF: directives seen
	Entries    int // channels finalized before dedup
	Duplicates int // channels dropped because their URL was already seen
}

// Parse normalizes text and returns its deduplicated channel list in
// playlist order. Malformed input yields an empty list, never an error.
func Parse(text string) []*models.Channel {
	channels, _ := ParseNormalized(NormalizeString(text))
	return channels
}

// ParseBytes is Parse for raw bytes in any supported encoding.
func ParseBytes(raw []byte) []*models.Channel {
	channels, _ := ParseNormalized(Normalize(raw))
	return channels
}

// ParseReader reads r fully and parses it. Only read errors are returned.
func ParseReader(r io.Reader) ([]*models.Channel, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	return ParseBytes(raw), nil
}

// ParseNormalized parses text that has already been through Normalize.
// Normalizing twice would unescape entities twice.
func ParseNormalized(text string) ([]*models.Channel, Stats) {
	var stats Stats
	b := NewBuilder()
	channels := make([]*models.Channel, 0)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch Classify(line) {
		case KindInfo:
			stats.InfoLines++
			b.OnInfo(line)
		case KindGroup:
			b.OnGroup(line)
		case KindOption:
			b.OnOption(line)
		case KindURL:
			if ch := b.OnURL(line); ch != nil {
				channels = append(channels, ch)
			}
		}
	}

	stats.Entries = len(channels)
	channels, stats.Duplicates = Dedupe(channels)
	return channels, stats
}

// Dedupe drops channels whose URL already appeared earlier in the list
// (exact, case-sensitive match) and returns how many were removed.
func Dedupe(channels []*models.Channel) ([]*models.Channel, int) {
	seen := make(map[string]struct{}, len(channels))
	unique := make([]*models.Channel, 0, len(channels))
	for _, ch := range channels {
		if _, ok := seen[ch.URL]; ok {
			continue
		}
		seen[ch.URL] = struct{}{}
		unique = append(unique, ch)
	}
	return unique, len(channels) - len(unique)
}
