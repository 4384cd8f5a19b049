package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playlist = "#EXTM3U\n#EXTINF:-1 group-title=\"News\",BBC News\nhttp://s/bbc.m3u8\n"

func TestFetch_Direct(t *testing.T) {
	var gotUA, gotCache string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCache = r.Header.Get("Cache-Control")
		w.Write([]byte(playlist))
	}))
	defer srv.Close()

	f := New(time.Second, "test-agent", nil)
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, playlist, string(body))
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "no-cache", gotCache)
}

func TestFetch_FallsBackToProxy(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	var proxied string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.Query().Get("url")
		w.Write([]byte(playlist))
	}))
	defer proxy.Close()

	f := New(time.Second, "", []string{"", "no-placeholder", proxy.URL + "/raw?url={url}"})
	body, err := f.Fetch(context.Background(), origin.URL+"/list.m3u")
	require.NoError(t, err)
	assert.Equal(t, playlist, string(body))
	assert.Equal(t, origin.URL+"/list.m3u", proxied)
}

func TestFetch_AllAttemptsFail(t *testing.T) {
	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer short.Close()

	f := New(time.Second, "", []string{short.URL + "/?u={url}"})
	_, err := f.Fetch(context.Background(), short.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.Contains(t, err.Error(), "body too short")
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := New(time.Second, "", nil).Fetch(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestFetchM3U(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good.m3u", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\xEF\xBB\xBF" + playlist))
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not an m3u file</body></html>"))
	})
	mux.HandleFunc("/empty.m3u", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n# nothing here but http://example.com\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(time.Second, "", nil)

	channels, stats, err := f.FetchM3U(context.Background(), srv.URL+"/good.m3u")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, "BBC News", channels[0].Name)

	_, _, err = f.FetchM3U(context.Background(), srv.URL+"/html")
	assert.ErrorIs(t, err, ErrNotPlaylist)

	_, _, err = f.FetchM3U(context.Background(), srv.URL+"/empty.m3u")
	assert.ErrorIs(t, err, ErrNoChannels)
}

func TestWithUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(playlist))
	}))
	defer srv.Close()

	base := New(time.Second, "base", nil)
	_, err := base.WithUserAgent("custom/2").Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "custom/2", gotUA)
	assert.Same(t, base, base.WithUserAgent(""))
}

func TestProxyURLs(t *testing.T) {
	f := New(time.Second, "", []string{"https://p/?u={url}"})
	got := f.proxyURLs("http://a/b?c=d")
	require.Len(t, got, 1)
	assert.Equal(t, "https://p/?u="+url.QueryEscape("http://a/b?c=d"), got[0])
}

func TestDecode(t *testing.T) {
	utf16 := []byte{0xFF, 0xFE}
	for _, r := range playlist {
		utf16 = append(utf16, byte(r), 0)
	}
	channels, _, err := Decode(utf16)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "News", channels[0].Group)

	_, _, err = Decode([]byte("not an m3u file"))
	assert.ErrorIs(t, err, ErrNotPlaylist)

	_, stats, err := Decode([]byte("#EXTM3U\n#EXTINF:-1,Only a name\n# see http://example.com\n"))
	assert.ErrorIs(t, err, ErrNoChannels)
	assert.Equal(t, 1, stats.InfoLines)
}
