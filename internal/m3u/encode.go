package m3u

import (
	"bufio"
	"io"
	"strings"

	"github.com/voyagen/streamscout/internal/models"
)

// EncodeOptions controls M3U export.
type EncodeOptions struct {
	// OnlineOnly skips every channel whose status is not online.
	OnlineOnly bool
}

// Encode writes channels as an extended M3U playlist.
func Encode(w io.Writer, channels []*models.Channel, opts EncodeOptions) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("#EXTM3U\n\n")
	for _, ch := range channels {
		if opts.OnlineOnly && ch.Status != models.StatusOnline {
			continue
		}
		writeEntry(bw, ch)
	}
	return bw.Flush()
}

// EncodeString is Encode into a string.
func EncodeString(channels []*models.Channel, opts EncodeOptions) string {
	var sb strings.Builder
	_ = Encode(&sb, channels, opts)
	return sb.String()
}

func writeEntry(bw *bufio.Writer, ch *models.Channel) {
	bw.WriteString("#EXTINF:-1")
	writeAttr(bw, "tvg-id", ch.TvgID)
	writeAttr(bw, "tvg-logo", ch.Logo)
	writeAttr(bw, "group-title", ch.Group)

	// A comma inside the name would be split off by the last-comma rule
	// on re-import, so such names travel in tvg-name too.
	tvgName := ch.TvgName
	if tvgName == "" && strings.Contains(ch.Name, ",") {
		tvgName = ch.Name
	}
	writeAttr(bw, "tvg-name", tvgName)
	writeAttr(bw, "tvg-language", ch.Language)
	writeAttr(bw, "tvg-country", ch.Country)
	bw.WriteString(",")
	bw.WriteString(singleLine(ch.Name))
	bw.WriteString("\n")

	if h := ch.Headers; !h.Empty() {
		writeOption(bw, "http-referrer", h.Referrer)
		writeOption(bw, "http-user-agent", h.UserAgent)
		writeOption(bw, "http-origin", h.HTTPOrigin)
	}

	bw.WriteString(ch.URL)
	bw.WriteString("\n\n")
}

func writeAttr(bw *bufio.Writer, key, value string) {
	if value == "" {
		return
	}
	bw.WriteString(" ")
	bw.WriteString(key)
	bw.WriteString(`="`)
	// Entities are unescaped before attributes are matched, so a literal
	// double quote cannot survive inside a quoted value.
	bw.WriteString(strings.ReplaceAll(singleLine(value), `"`, "'"))
	bw.WriteString(`"`)
}

func writeOption(bw *bufio.Writer, key, value string) {
	if value == "" {
		return
	}
	bw.WriteString("#EXTVLCOPT:")
	bw.WriteString(key)
	bw.WriteString("=")
	bw.WriteString(singleLine(value))
	bw.WriteString("\n")
}

func singleLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
