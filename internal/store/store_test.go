package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/streamscout/internal/models"
)

func TestChannelFilterNormalize(t *testing.T) {
	f := ChannelFilter{Limit: 0, Offset: -3}
	f.Normalize()
	assert.Equal(t, 50, f.Limit)
	assert.Equal(t, 0, f.Offset)

	f = ChannelFilter{Limit: 10000}
	f.Normalize()
	assert.Equal(t, 500, f.Limit)
}

func TestChannelWhere(t *testing.T) {
	where, args := channelWhere(ChannelFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	sid, gid := int64(3), int64(9)
	where, args = channelWhere(ChannelFilter{SourceID: &sid, GroupID: &gid, Status: models.StatusOnline, Search: " news "})
	assert.Equal(t,
		` WHERE c.source_id = $1 AND c.group_id = $2 AND c.status = $3 AND `+
			`(c.name ILIKE $4 ESCAPE '\' OR g.name ILIKE $4 ESCAPE '\' OR c.url ILIKE $4 ESCAPE '\')`,
		where)
	assert.Equal(t, []any{int64(3), int64(9), "online", "%news%"}, args)
}

func TestChannelWhere_SearchIsLiteral(t *testing.T) {
	tests := []struct {
		search string
		want   string
	}{
		{"_", `%\_%`},
		{"100%", `%100\%%`},
		{`a\b`, `%a\\b%`},
		{"bbc_one", `%bbc\_one%`},
	}
	for _, tt := range tests {
		_, args := channelWhere(ChannelFilter{Search: tt.search})
		assert.Equal(t, []any{tt.want}, args, tt.search)
	}
}

func TestFilterHash(t *testing.T) {
	sid := int64(1)
	a := filterHash(ChannelFilter{SourceID: &sid})
	b := filterHash(ChannelFilter{SourceID: &sid, Limit: 50})
	c := filterHash(ChannelFilter{Search: "x"})
	assert.Equal(t, a, b, "defaults are normalized before hashing")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

// testPostgres connects to STREAMSCOUT_TEST_DATABASE or skips.
func testPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("STREAMSCOUT_TEST_DATABASE")
	if dsn == "" {
		t.Skip("STREAMSCOUT_TEST_DATABASE not set")
	}
	require.NoError(t, RunMigrations(dsn))
	p, err := NewPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPostgres_SourceLifecycle(t *testing.T) {
	p := testPostgres(t)
	ctx := context.Background()

	name := "test-" + time.Now().Format("150405.000000")
	sid, err := p.CreateOrGetSource(ctx, name, "http://example/list.m3u", models.SourceTypeM3ULink, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.DeleteSource(context.Background(), sid) })

	again, err := p.CreateOrGetSource(ctx, name, "http://example/list.m3u", models.SourceTypeM3ULink, "")
	require.NoError(t, err)
	assert.Equal(t, sid, again)

	byURL, err := p.GetSourceByURL(ctx, "http://example/list.m3u")
	require.NoError(t, err)
	assert.Equal(t, sid, byURL.ID)
	byName, err := p.GetSourceByName(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, sid, byName.ID)
	_, err = p.GetSourceByName(ctx, name+"-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	gid, err := p.GetOrCreateGroup(ctx, sid, "News")
	require.NoError(t, err)

	id1, err := p.UpsertChannel(ctx, &models.Channel{Name: "A", URL: "http://a", SourceID: sid, GroupID: &gid, Position: 0})
	require.NoError(t, err)
	require.NoError(t, p.UpsertChannelHeaders(ctx, id1, &models.ChannelHttpHeaders{Referrer: "http://ref/"}))
	id2, err := p.UpsertChannel(ctx, &models.Channel{Name: "B", URL: "http://b", SourceID: sid, Position: 1})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, p.UpdateChannelStatuses(ctx, []StatusUpdate{
		{ChannelID: id1, Status: models.StatusOnline, CheckedAt: now},
		{ChannelID: id2, Status: models.StatusOffline, CheckedAt: now},
	}))

	channels, err := p.ListChannelsBySource(ctx, sid)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "News", channels[0].Group)
	assert.Equal(t, models.StatusOnline, channels[0].Status)
	require.NotNil(t, channels[0].Headers)
	assert.Equal(t, "http://ref/", channels[0].Headers.Referrer)

	online := models.StatusOnline
	page, total, err := p.ListChannels(ctx, ChannelFilter{SourceID: &sid, Status: online})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "A", page[0].Name)

	_, total, err = p.ListChannels(ctx, ChannelFilter{SourceID: &sid, Search: "_"})
	require.NoError(t, err)
	assert.Zero(t, total)

	dropped, err := p.RemoveStaleChannelHeaders(ctx, sid, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, dropped)
	channels, err = p.ListChannelsBySource(ctx, sid)
	require.NoError(t, err)
	assert.True(t, channels[0].Headers.Empty())

	removed, err := p.RemoveStaleChannels(ctx, sid, []int64{id2})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	orphans, err := p.RemoveOrphanedGroups(ctx, sid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, orphans)

	require.NoError(t, p.DeleteSource(ctx, sid))
	_, err = p.GetSourceByID(ctx, sid)
	assert.ErrorIs(t, err, ErrNotFound)
}
