package m3u

import (
	"regexp"
	"strings"
)

// Format is the playlist flavour reported by DetectFormat.
type Format string

const (
	FormatStandard Format = "standard"
	FormatExtended Format = "extended"
	FormatSimple   Format = "simple"
	FormatPlaylist Format = "playlist"
	FormatUnknown  Format = "unknown"
)

var (
	reHasInfo   = regexp.MustCompile(`(?i)#EXTINF:`)
	reHasHeader = regexp.MustCompile(`(?i)#EXTM3U`)
	reHasHTTP   = regexp.MustCompile(`(?i)https?://`)

	reStandard   = regexp.MustCompile(`(?i)#EXTINF:-1[^,]*,`)
	reExtended   = regexp.MustCompile(`(?i)#EXTINF:-1\s+tvg-`)
	reSimpleLine = regexp.MustCompile(`(?m)^https?://`)
)

// minPlaylistLen is the shortest body worth treating as a playlist.
const minPlaylistLen = 10

// LooksLikeM3U is the cheap validity gate run before parsing: an EXTINF or
// EXTM3U marker plus at least one http(s) URL.
func LooksLikeM3U(text string) bool {
	if len(text) < minPlaylistLen {
		return false
	}
	return (reHasInfo.MatchString(text) || reHasHeader.MatchString(text)) && reHasHTTP.MatchString(text)
}

// DetectFormat classifies the playlist flavour. The checks run in a fixed
// order and the first hit wins.
func DetectFormat(text string) Format {
	switch {
	case reStandard.MatchString(text):
		return FormatStandard
	case reExtended.MatchString(text):
		return FormatExtended
	case reSimpleLine.MatchString(text) && !strings.Contains(text, "#EXTINF"):
		return FormatSimple
	case reHasHeader.MatchString(text):
		return FormatPlaylist
	}
	return FormatUnknown
}
