package m3u

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/voyagen/streamscout/internal/models"
)

const bbcPlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="bbc1" tvg-logo="http://x/l.png" group-title="News",BBC News
http://s/bbc.m3u8
`

func TestParse_BasicEntry(t *testing.T) {
	channels := Parse(bbcPlaylist)
	require.Len(t, channels, 1)

	ch := channels[0]
	assert.Equal(t, "BBC News", ch.Name)
	assert.Equal(t, "http://s/bbc.m3u8", ch.URL)
	assert.Equal(t, "bbc1", ch.TvgID)
	assert.Equal(t, "http://x/l.png", ch.Logo)
	assert.Equal(t, "News", ch.Group)
	assert.Equal(t, models.StatusUnknown, ch.Status)
	assert.Equal(t, models.StreamHLS, ch.StreamType)
	assert.Equal(t, "application/vnd.apple.mpegurl", ch.MimeHint)
}

func TestParse_DuplicateURLsKeepFirst(t *testing.T) {
	text := "#EXTM3U\n#EXTINF:-1,A\nhttp://a\n#EXTINF:-1,B\nhttp://a\n"
	channels, stats := ParseNormalized(NormalizeString(text))
	require.Len(t, channels, 1)
	assert.Equal(t, "A", channels[0].Name)
	assert.Equal(t, 2, stats.InfoLines)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestParse_URLsAreCaseSensitiveForDedup(t *testing.T) {
	text := "#EXTINF:-1,A\nhttp://host/Live\n#EXTINF:-1,B\nhttp://host/live\n"
	assert.Len(t, Parse(text), 2)
}

func TestParse_NotAPlaylist(t *testing.T) {
	assert.False(t, LooksLikeM3U("not an m3u file"))
	channels := Parse("not an m3u file")
	assert.NotNil(t, channels)
	assert.Empty(t, channels)
}

func TestParse_EmptyInput(t *testing.T) {
	channels := Parse("")
	assert.NotNil(t, channels)
	assert.Empty(t, channels)
}

func TestParse_StrayURLDropped(t *testing.T) {
	text := "#EXTM3U\nhttp://stray\n#EXTINF:-1,X\nhttp://b\n"
	channels := Parse(text)
	require.Len(t, channels, 1)
	assert.Equal(t, "X", channels[0].Name)
	assert.Equal(t, "http://b", channels[0].URL)
}

func TestParse_OnlyLastInfoIsFinalized(t *testing.T) {
	text := "#EXTINF:-1,First\n#EXTINF:-1,Second\nhttp://a\n"
	channels := Parse(text)
	require.Len(t, channels, 1)
	assert.Equal(t, "Second", channels[0].Name)
}

func TestParse_NameFallbacks(t *testing.T) {
	text := strings.Join([]string{
		"#EXTINF:-1,",
		"http://host/live/bbc_one-hd.m3u8",
		"#EXTINF:-1,",
		"http://host/",
		`#EXTINF:-1 tvg-name="Named",ignored`,
		"http://host/named",
	}, "\n")

	channels := Parse(text)
	require.Len(t, channels, 3)
	assert.Equal(t, "Bbc One Hd", channels[0].Name)
	assert.Equal(t, "Channel 2", channels[1].Name)
	assert.Equal(t, "Named", channels[2].Name)
}

func TestParse_DirectivesAreCaseInsensitive(t *testing.T) {
	text := "#extm3u\n#extinf:-1 GROUP-TITLE=\"Kids\",Cartoons\nhttp://k\n"
	channels := Parse(text)
	require.Len(t, channels, 1)
	assert.Equal(t, "Cartoons", channels[0].Name)
	assert.Equal(t, "Kids", channels[0].Group)
}

func TestParse_ExtGrpAndVLCOptions(t *testing.T) {
	text := strings.Join([]string{
		"#EXTINF:-1,Sport One",
		"#EXTGRP:Sports",
		"#EXTVLCOPT:http-referrer=http://ref.example/",
		"#EXTVLCOPT:http-user-agent=VLC/3.0",
		"#KODIPROP:inputstream=adaptive",
		"http://sport/one.mpd",
		`#EXTINF:-1 group-title="Movies",Film`,
		"#EXTGRP:Ignored",
		"http://film/a.mp4",
	}, "\n")

	channels := Parse(text)
	require.Len(t, channels, 2)

	assert.Equal(t, "Sports", channels[0].Group)
	require.NotNil(t, channels[0].Headers)
	assert.Equal(t, "http://ref.example/", channels[0].Headers.Referrer)
	assert.Equal(t, "VLC/3.0", channels[0].Headers.UserAgent)
	assert.Equal(t, models.StreamDASH, channels[0].StreamType)
	assert.Equal(t, "application/dash+xml", channels[0].MimeHint)

	assert.Equal(t, "Movies", channels[1].Group)
	assert.Nil(t, channels[1].Headers)
	assert.Equal(t, models.StreamVideo, channels[1].StreamType)
}

func TestParse_AttributeVariants(t *testing.T) {
	text := strings.Join([]string{
		`#EXTINF:-1 tvg-id='single' logo="http://l/x.png" tvg-language=English tvg-country="UK",Name`,
		"http://a",
	}, "\n")

	channels := Parse(text)
	require.Len(t, channels, 1)
	ch := channels[0]
	assert.Equal(t, "single", ch.TvgID)
	assert.Equal(t, "http://l/x.png", ch.Logo)
	assert.Equal(t, "English", ch.Language)
	assert.Equal(t, "UK", ch.Country)
}

func TestParse_EntitiesAndWhitespaceInNames(t *testing.T) {
	text := "#EXTINF:-1 group-title=\"News &amp; Sport\",  Tom &amp;   Jerry | \nhttp://a\n"
	channels := Parse(text)
	require.Len(t, channels, 1)
	assert.Equal(t, "Tom & Jerry", channels[0].Name)
	assert.Equal(t, "News & Sport", channels[0].Group)
}

func TestParse_CommentsAndStreamMetaIgnored(t *testing.T) {
	text := strings.Join([]string{
		"#EXTM3U",
		"## a comment",
		"// another",
		"#EXT-X-VERSION:3",
		"garbage line",
		"#EXTINF:-1,A",
		"#EXT-X-STREAM-INF:BANDWIDTH=1",
		"http://a",
	}, "\n")
	channels := Parse(text)
	require.Len(t, channels, 1)
	assert.Equal(t, "A", channels[0].Name)
}

func TestParseBytes_BOMAndLineEndings(t *testing.T) {
	raw := []byte("\xEF\xBB\xBF#EXTM3U\r\n#EXTINF:-1,A\r\nhttp://a\r\n#EXTINF:-1,B\rhttp://b\r")
	channels := ParseBytes(raw)
	require.Len(t, channels, 2)
	assert.Equal(t, "A", channels[0].Name)
	assert.Equal(t, "http://b", channels[1].URL)
}

func TestParseBytes_UTF16(t *testing.T) {
	enc := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewEncoder()
	raw, err := enc.Bytes([]byte("#EXTM3U\n#EXTINF:-1,Télé\nhttp://a\n"))
	require.NoError(t, err)

	channels := ParseBytes(raw)
	require.Len(t, channels, 1)
	assert.Equal(t, "Télé", channels[0].Name)
}

func TestParseBytes_Windows1252(t *testing.T) {
	channels := ParseBytes([]byte("#EXTINF:-1,Caf\xe9\nhttp://a\n"))
	require.Len(t, channels, 1)
	assert.Equal(t, "Café", channels[0].Name)
}

func TestParseReader(t *testing.T) {
	channels, err := ParseReader(strings.NewReader(bbcPlaylist))
	require.NoError(t, err)
	assert.Len(t, channels, 1)
}

func TestParse_NeverMoreChannelsThanInfoLines(t *testing.T) {
	inputs := []string{
		bbcPlaylist,
		"http://a\nhttp://b\n",
		"#EXTINF:-1,A\n#EXTINF:-1,B\n",
		"#EXTINF:-1,A\nhttp://a\nhttp://b\nhttp://c\n",
	}
	for _, in := range inputs {
		channels, stats := ParseNormalized(NormalizeString(in))
		assert.LessOrEqual(t, len(channels), stats.InfoLines, in)
		for _, ch := range channels {
			assert.NotEmpty(t, ch.URL)
			assert.NotEmpty(t, ch.Name)
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []*models.Channel{{URL: "a"}, {URL: "b"}, {URL: "a"}, {URL: "c"}, {URL: "b"}}
	out, removed := Dedupe(in)
	assert.Equal(t, 2, removed)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].URL)
	assert.Equal(t, "b", out[1].URL)
	assert.Equal(t, "c", out[2].URL)
}
