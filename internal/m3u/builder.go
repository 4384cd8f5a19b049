package m3u

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/voyagen/streamscout/internal/models"
)

// attributeRule binds one Channel field to the ordered patterns that may
// carry it on an EXTINF line. The first pattern with a non-empty capture wins.
type attributeRule struct {
	field    string
	assign   func(ch *models.Channel, v string)
	patterns []*regexp.Regexp
}

var attributeRules = []attributeRule{
	{
		field:  "tvg-id",
		assign: func(ch *models.Channel, v string) { ch.TvgID = v },
		patterns: compileAll(
			`tvg-id="([^"]*)"`, `tvg-id='([^']*)'`, `tvg-id=([^\s,"']+)`,
		),
	},
	{
		field:  "logo",
		assign: func(ch *models.Channel, v string) { ch.Logo = v },
		patterns: compileAll(
			`tvg-logo="([^"]*)"`, `tvg-logo='([^']*)'`, `logo="([^"]*)"`, `logo='([^']*)'`, `tvg-logo=([^\s,"']+)`,
		),
	},
	{
		field:  "group",
		assign: func(ch *models.Channel, v string) { ch.Group = v },
		patterns: compileAll(
			`group-title="([^"]*)"`, `group-title='([^']*)'`, `group="([^"]*)"`, `group-title=([^\s,"']+)`,
		),
	},
	{
		field:  "tvg-name",
		assign: func(ch *models.Channel, v string) { ch.TvgName = v },
		patterns: compileAll(
			`tvg-name="([^"]*)"`, `tvg-name='([^']*)'`,
		),
	},
	{
		field:  "language",
		assign: func(ch *models.Channel, v string) { ch.Language = v },
		patterns: compileAll(
			`tvg-language="([^"]*)"`, `language="([^"]*)"`, `tvg-language=([^\s,"']+)`,
		),
	},
	{
		field:  "country",
		assign: func(ch *models.Channel, v string) { ch.Country = v },
		patterns: compileAll(
			`tvg-country="([^"]*)"`, `country="([^"]*)"`, `tvg-country=([^\s,"']+)`,
		),
	},
}

var (
	reLastComma   = regexp.MustCompile(`,([^,]+)$`)
	reAfterExtinf = regexp.MustCompile(`(?i)#EXTINF:[^,]*,(.+)$`)
	reAfterQuotes = regexp.MustCompile(`["']\s*,?\s*([^,"']+)$`)
	reNameEdges   = regexp.MustCompile(`^[,\s|:]+|[,\s|:]+$`)
	reSpaces      = regexp.MustCompile(`\s+`)

	reGroupPayload  = regexp.MustCompile(`(?i)^#EXTGRP:(.+)`)
	reHTTPReferrer  = regexp.MustCompile(`(?i)http-referr?er=(.+)`)
	reHTTPUserAgent = regexp.MustCompile(`(?i)http-user-agent=(.+)`)
	reHTTPOrigin    = regexp.MustCompile(`(?i)http-origin=(.+)`)

	reMediaExt  = regexp.MustCompile(`(?i)\.(m3u8?|ts|mp4|mkv|avi|flv)$`)
	reWordStart = regexp.MustCompile(`\b\w`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// Builder accumulates EXTINF metadata into a pending channel and emits it
// once the following URL line arrives. Only the most recent EXTINF can be
// finalized; an entry that never sees a URL is dropped.
type Builder struct {
	pending *models.Channel
	emitted int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// OnInfo starts a new pending entry from an #EXTINF: line.
func (b *Builder) OnInfo(line string) {
	b.pending = parseInfo(line)
}

// OnGroup applies an #EXTGRP: line unless the entry already has a group.
func (b *Builder) OnGroup(line string) {
	if b.pending == nil || b.pending.Group != "" {
		return
	}
	if m := reGroupPayload.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
		b.pending.Group = strings.TrimSpace(m[1])
	}
}

// OnOption records referrer, user-agent and origin from #EXTVLCOPT: lines.
// Other option directives (#KODIPROP:) are ignored.
func (b *Builder) OnOption(line string) {
	if b.pending == nil || !hasPrefixFold(strings.TrimSpace(line), "#EXTVLCOPT:") {
		return
	}
	h := b.pending.Headers
	if h == nil {
		h = &models.ChannelHttpHeaders{}
	}
	if v := matchFirst(reHTTPReferrer, line); v != "" {
		h.Referrer = v
	}
	if v := matchFirst(reHTTPUserAgent, line); v != "" {
		h.UserAgent = v
	}
	if v := matchFirst(reHTTPOrigin, line); v != "" {
		h.HTTPOrigin = v
	}
	if !h.Empty() {
		b.pending.Headers = h
	}
}

// OnURL finalizes the pending entry with the given URL. It returns nil for a
// stray URL line that has no preceding EXTINF.
func (b *Builder) OnURL(line string) *models.Channel {
	ch := b.pending
	if ch == nil {
		return nil
	}
	b.pending = nil

	ch.URL = strings.TrimSpace(line)
	if ch.Name == "" {
		ch.Name = NameFromURL(ch.URL)
	}
	if ch.Name == "" {
		ch.Name = fmt.Sprintf("Channel %d", b.emitted+1)
	}
	ch.Name = strings.TrimSpace(ch.Name)
	ch.Group = strings.TrimSpace(ch.Group)
	ch.StreamType = StreamTypeOf(ch.URL)
	ch.MimeHint = ch.StreamType.MimeHint(ch.URL)
	b.emitted++
	return ch
}

func parseInfo(line string) *models.Channel {
	ch := &models.Channel{Status: models.StatusUnknown}
	for _, rule := range attributeRules {
		for _, re := range rule.patterns {
			if v := matchFirst(re, line); v != "" {
				rule.assign(ch, v)
				break
			}
		}
	}
	ch.Name = cleanName(extractName(line, ch.TvgName))
	return ch
}

// extractName applies the display-name fallbacks in order: tvg-name, text
// after the last comma, text after the comma following the duration, text
// after the last quoted value.
func extractName(line, tvgName string) string {
	if tvgName != "" {
		return tvgName
	}
	for _, re := range []*regexp.Regexp{reLastComma, reAfterExtinf, reAfterQuotes} {
		if v := matchFirst(re, line); v != "" {
			return v
		}
	}
	return ""
}

func cleanName(name string) string {
	if name == "" {
		return ""
	}
	name = UnescapeEntities(name)
	name = reNameEdges.ReplaceAllString(name, "")
	name = reSpaces.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// NameFromURL derives a readable name from the last path segment of a URL:
// "/live/bbc_one-hd.m3u8" becomes "Bbc One Hd". Empty when there is no path.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	name := reMediaExt.ReplaceAllString(parts[len(parts)-1], "")
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = reWordStart.ReplaceAllStringFunc(name, strings.ToUpper)
	return strings.TrimSpace(name)
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
