package models

import "strings"

// Source type constants.
const (
	SourceTypeM3ULink int16 = 1
	SourceTypeM3UText int16 = 2
)

// StreamType is the playback family of a channel URL.
type StreamType string

const (
	StreamHLS     StreamType = "hls"
	StreamDASH    StreamType = "dash"
	StreamRTMP    StreamType = "rtmp"
	StreamVideo   StreamType = "video"
	StreamUnknown StreamType = "unknown"
)

// MimeHint returns the MIME type handed to the playback collaborator
// together with the URL. Empty means "let the player sniff".
func (t StreamType) MimeHint(url string) string {
	switch t {
	case StreamHLS:
		return "application/vnd.apple.mpegurl"
	case StreamDASH:
		return "application/dash+xml"
	case StreamRTMP:
		return "rtmp/flv"
	case StreamVideo:
		lower := strings.ToLower(url)
		switch {
		case strings.Contains(lower, ".webm"):
			return "video/webm"
		case strings.Contains(lower, ".ogg"):
			return "video/ogg"
		case strings.Contains(lower, ".mkv"):
			return "video/x-matroska"
		}
		return "video/mp4"
	}
	return ""
}
