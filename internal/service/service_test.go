package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/streamscout/internal/cache"
	"github.com/voyagen/streamscout/internal/checker"
	"github.com/voyagen/streamscout/internal/fetcher"
	"github.com/voyagen/streamscout/internal/models"
	"github.com/voyagen/streamscout/internal/store/storetest"
)

const playlistV1 = `#EXTM3U
#EXTINF:-1 group-title="News",BBC News
http://up/bbc
#EXTVLCOPT:http-referrer=http://ref/
#EXTINF:-1 group-title="Kids",Cartoons
#EXTVLCOPT:http-referrer=http://ref/
http://down/toons
#EXTINF:-1,Dup
http://up/bbc
`

const playlistV2 = `#EXTM3U
#EXTINF:-1 group-title="News",BBC News HD
http://up/bbc
#EXTINF:-1 group-title="Sport",Sport
http://up/sport
`

var hostProber = checker.ProberFunc(func(_ context.Context, ch *models.Channel) checker.Outcome {
	if strings.HasPrefix(ch.URL, "http://up/") {
		return checker.Outcome{StatusCode: 200}
	}
	return checker.Outcome{Err: context.DeadlineExceeded}
})

func upstream(t *testing.T, body *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(*body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngest_Content(t *testing.T) {
	s := storetest.New()
	res, err := Ingest(context.Background(), s, nil, IngestRequest{Name: "pasted", Content: playlistV1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Channels)
	assert.Equal(t, 1, res.Duplicates)

	src, err := s.GetSourceByID(context.Background(), res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeM3UText, src.SourceType)
	assert.NotNil(t, src.LastUpdated)

	channels, _ := s.ListChannelsBySource(context.Background(), res.SourceID)
	require.Len(t, channels, 2)
	assert.Equal(t, "BBC News", channels[0].Name)
	assert.NotNil(t, channels[0].GroupID)
	assert.Equal(t, 1, s.HeaderRows())
	assert.Empty(t, channels[0].MimeHint, "no hint for an extensionless URL")

	hls, err := Ingest(context.Background(), s, nil, IngestRequest{Name: "hls", Content: "#EXTM3U\n#EXTINF:-1,H\nhttp://up/h.m3u8\n"})
	require.NoError(t, err)
	channels, _ = s.ListChannelsBySource(context.Background(), hls.SourceID)
	require.Len(t, channels, 1)
	assert.Equal(t, "application/vnd.apple.mpegurl", channels[0].MimeHint)
}

func TestIngest_Errors(t *testing.T) {
	s := storetest.New()
	_, err := Ingest(context.Background(), s, nil, IngestRequest{})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Ingest(context.Background(), s, nil, IngestRequest{Content: "not an m3u file"})
	assert.ErrorIs(t, err, fetcher.ErrNotPlaylist)

	_, err = Ingest(context.Background(), s, nil, IngestRequest{Content: "#EXTM3U\n# http://nothing\n"})
	assert.ErrorIs(t, err, fetcher.ErrNoChannels)
	sources, err := s.ListSources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestIngest_URLAndRefresh(t *testing.T) {
	body := playlistV1
	srv := upstream(t, &body)
	s := storetest.New()
	f := fetcher.New(time.Second, "", nil)
	ctx := context.Background()

	res, err := Ingest(ctx, s, f, IngestRequest{URL: srv.URL + "/lists/mine.m3u"})
	require.NoError(t, err)
	src, _ := s.GetSourceByID(ctx, res.SourceID)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://")+"-mine", src.Name)
	assert.Equal(t, models.SourceTypeM3ULink, src.SourceType)

	body = playlistV2
	res2, err := Refresh(ctx, s, f, res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, res.SourceID, res2.SourceID)
	assert.Equal(t, 2, res2.Channels)
	assert.EqualValues(t, 1, res2.Removed)

	channels, _ := s.ListChannelsBySource(ctx, res.SourceID)
	require.Len(t, channels, 2)
	assert.Equal(t, "BBC News HD", channels[0].Name)
	assert.Equal(t, "Sport", channels[1].Name)

	groups, _ := s.ListGroups(ctx, &res.SourceID)
	assert.Len(t, groups, 2, "Kids group removed with its last channel")
}

func TestCheckSource(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	res, err := Ingest(ctx, s, nil, IngestRequest{Name: "x", Content: playlistV1})
	require.NoError(t, err)

	c := checker.New(checker.WithProber(hostProber))
	sum, err := CheckSource(ctx, s, c, nil, res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Online)

	channels, _ := s.ListChannelsBySource(ctx, res.SourceID)
	assert.Equal(t, models.StatusOnline, channels[0].Status)
	assert.Equal(t, models.StatusOffline, channels[1].Status)
	assert.NotNil(t, channels[1].CheckedAt)

	src, _ := s.GetSourceByID(ctx, res.SourceID)
	assert.NotNil(t, src.LastChecked)

	// A later refresh keeps the known status.
	_, err = Ingest(ctx, s, nil, IngestRequest{Name: "x", Content: playlistV1})
	require.NoError(t, err)
	channels, _ = s.ListChannelsBySource(ctx, res.SourceID)
	assert.Equal(t, models.StatusOnline, channels[0].Status)
}

func TestDispatcher_Inline(t *testing.T) {
	body := playlistV1
	srv := upstream(t, &body)
	s := storetest.New()
	ctx := context.Background()
	d := &Dispatcher{
		Store:   s,
		Fetcher: fetcher.New(time.Second, "", nil),
		Checker: checker.New(checker.WithProber(hostProber)),
	}
	assert.False(t, d.Queued())

	res, err := Ingest(ctx, s, d.Fetcher, IngestRequest{URL: srv.URL})
	require.NoError(t, err)

	body = playlistV2
	require.NoError(t, d.Submit(ctx, cache.CheckJob{Kind: cache.JobRefresh, SourceID: res.SourceID}))
	channels, _ := s.ListChannelsBySource(ctx, res.SourceID)
	require.Len(t, channels, 2)
	for _, ch := range channels {
		assert.Equal(t, models.StatusOnline, ch.Status)
	}

	assert.Error(t, d.Handle(ctx, cache.CheckJob{Kind: "bogus", SourceID: res.SourceID}))
	assert.Error(t, d.Submit(ctx, cache.CheckJob{Kind: cache.JobRefresh, SourceID: 999}))
}

func TestDispatcher_CheckEnabledSources(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	a, _ := Ingest(ctx, s, nil, IngestRequest{Name: "a", Content: playlistV1})
	b, _ := Ingest(ctx, s, nil, IngestRequest{Name: "b", Content: playlistV2})
	s.SetEnabled(b.SourceID, false)

	d := &Dispatcher{Store: s, Checker: checker.New(checker.WithProber(hostProber))}
	d.CheckEnabledSources(ctx)

	srcA, _ := s.GetSourceByID(ctx, a.SourceID)
	srcB, _ := s.GetSourceByID(ctx, b.SourceID)
	assert.NotNil(t, srcA.LastChecked)
	assert.Nil(t, srcB.LastChecked)
}

func TestDefaultSourceName(t *testing.T) {
	assert.Equal(t, "host-list", DefaultSourceName("http://host/path/list.m3u8"))
	assert.Equal(t, "one.test-get", DefaultSourceName("http://one.test/get.php?username=u&password=p"))
	assert.Equal(t, "host", DefaultSourceName("http://host/"))
	assert.Equal(t, "host", DefaultSourceName("http://host"))
	assert.Equal(t, "m3u", DefaultSourceName(""))
}

func TestIngest_UnnamedSourcesDoNotCollide(t *testing.T) {
	body := playlistV1
	srv := upstream(t, &body)
	s := storetest.New()
	f := fetcher.New(time.Second, "", nil)
	ctx := context.Background()

	pastedA, err := Ingest(ctx, s, nil, IngestRequest{Content: playlistV1})
	require.NoError(t, err)
	pastedB, err := Ingest(ctx, s, nil, IngestRequest{Content: playlistV2})
	require.NoError(t, err)
	assert.NotEqual(t, pastedA.SourceID, pastedB.SourceID)

	// Two Xtream-style panels on the same host share the get.php file name.
	xtreamA, err := Ingest(ctx, s, f, IngestRequest{URL: srv.URL + "/get.php?username=a"})
	require.NoError(t, err)
	body = playlistV2
	xtreamB, err := Ingest(ctx, s, f, IngestRequest{URL: srv.URL + "/get.php?username=b"})
	require.NoError(t, err)
	assert.NotEqual(t, xtreamA.SourceID, xtreamB.SourceID)

	srcA, _ := s.GetSourceByID(ctx, xtreamA.SourceID)
	srcB, _ := s.GetSourceByID(ctx, xtreamB.SourceID)
	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Equal(t, host+"-get", srcA.Name)
	assert.Equal(t, host+"-get-2", srcB.Name)

	for id, want := range map[int64]int{
		pastedA.SourceID: 2, pastedB.SourceID: 2,
		xtreamA.SourceID: 2, xtreamB.SourceID: 2,
	} {
		channels, err := s.ListChannelsBySource(ctx, id)
		require.NoError(t, err)
		assert.Len(t, channels, want, "source %d lost its channels", id)
	}
	chA, _ := s.ListChannelsBySource(ctx, xtreamA.SourceID)
	assert.Equal(t, "BBC News", chA[0].Name)

	// Re-ingesting a known URL without a name updates that source.
	again, err := Ingest(ctx, s, f, IngestRequest{URL: srv.URL + "/get.php?username=a"})
	require.NoError(t, err)
	assert.Equal(t, xtreamA.SourceID, again.SourceID)

	sources, _ := s.ListSources(ctx)
	assert.Len(t, sources, 4)
}

func TestIngest_DropsStaleHeaders(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	_, err := Ingest(ctx, s, nil, IngestRequest{Name: "x", Content: playlistV1})
	require.NoError(t, err)
	require.Equal(t, 1, s.HeaderRows())

	// Same channel, no EXTVLCOPT line any more.
	withoutHeaders := "#EXTM3U\n#EXTINF:-1 group-title=\"Kids\",Cartoons\nhttp://down/toons\n"
	res, err := Ingest(ctx, s, nil, IngestRequest{Name: "x", Content: withoutHeaders})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Removed)
	assert.Equal(t, 0, s.HeaderRows())

	channels, _ := s.ListChannelsBySource(ctx, res.SourceID)
	require.Len(t, channels, 1)
	assert.Equal(t, "http://down/toons", channels[0].URL)
	assert.True(t, channels[0].Headers.Empty())
}
