package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeHint(t *testing.T) {
	tests := []struct {
		typ  StreamType
		url  string
		want string
	}{
		{StreamHLS, "http://h/live.m3u8", "application/vnd.apple.mpegurl"},
		{StreamDASH, "http://h/manifest.mpd", "application/dash+xml"},
		{StreamRTMP, "rtmp://h/app/key", "rtmp/flv"},
		{StreamVideo, "http://h/film.WEBM", "video/webm"},
		{StreamVideo, "http://h/film.mkv?token=1", "video/x-matroska"},
		{StreamVideo, "http://h/film.mp4", "video/mp4"},
		{StreamUnknown, "http://h/stream", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.MimeHint(tt.url), tt.url)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusOnline.Terminal())
	assert.True(t, StatusOffline.Terminal())
	assert.False(t, StatusChecking.Terminal())
	assert.False(t, StatusUnknown.Terminal())
}
