package m3u

import "strings"

// Kind is the category of a single playlist line.
type Kind int

const (
	KindBlank Kind = iota
	KindHeader
	KindInfo
	KindGroup
	KindOption
	KindStreamMeta
	KindComment
	KindURL
	KindUnknown
)

var kindNames = [...]string{
	KindBlank:      "blank",
	KindHeader:     "header",
	KindInfo:       "info",
	KindGroup:      "group",
	KindOption:     "option",
	KindStreamMeta: "stream-meta",
	KindComment:    "comment",
	KindURL:        "url",
	KindUnknown:    "unknown",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Directive prefixes, matched case-insensitively against the trimmed line.
var directives = []struct {
	prefix string
	kind   Kind
}{
	{"#EXTINF:", KindInfo},
	{"#EXTM3U", KindHeader},
	{"#EXTGRP:", KindGroup},
	{"#EXTVLCOPT:", KindOption},
	{"#KODIPROP:", KindOption},
	{"#EXT-X-", KindStreamMeta},
	{"#PLAYLIST", KindStreamMeta},
	{"#STREAM", KindStreamMeta},
	{"#BANDWIDTH", KindStreamMeta},
}

// Classify categorizes one line of playlist text. Lines that are neither
// directives nor acceptable stream URLs are KindUnknown.
func Classify(line string) Kind {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return KindBlank
	case strings.HasPrefix(line, "##"), strings.HasPrefix(line, "//"):
		return KindComment
	case line[0] == '#':
		for _, d := range directives {
			if hasPrefixFold(line, d.prefix) {
				return d.kind
			}
		}
		return KindUnknown
	case IsStreamURL(line):
		return KindURL
	}
	return KindUnknown
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
