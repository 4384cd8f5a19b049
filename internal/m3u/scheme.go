package m3u

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/voyagen/streamscout/internal/models"
)

// KnownSchemes are the stream URL prefixes seen in the wild most often.
var KnownSchemes = []string{
	"http://", "https://",
	"rtmp://", "rtmps://",
	"rtsp://", "rtp://",
	"mms://", "mmsh://",
	"udp://",
}

// IPTV playlists use plenty of nonstandard schemes, so any
// scheme-looking token followed by "://" is accepted as well.
var genericScheme = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

// IsStreamURL reports whether line can be used as a channel URL.
func IsStreamURL(line string) bool {
	for _, p := range KnownSchemes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return genericScheme.MatchString(line)
}

// StreamTypeOf guesses the playback family of a stream URL.
func StreamTypeOf(rawURL string) models.StreamType {
	lower := strings.ToLower(rawURL)
	ext := ""
	if u, err := url.Parse(lower); err == nil {
		ext = strings.TrimPrefix(path.Ext(u.Path), ".")
	}
	switch {
	case strings.Contains(lower, ".m3u8") || ext == "m3u8":
		return models.StreamHLS
	case strings.Contains(lower, ".mpd") || ext == "mpd":
		return models.StreamDASH
	case strings.HasPrefix(lower, "rtmp://"), strings.HasPrefix(lower, "rtmps://"):
		return models.StreamRTMP
	}
	switch ext {
	case "mp4", "webm", "ogg", "mkv":
		return models.StreamVideo
	}
	return models.StreamUnknown
}
