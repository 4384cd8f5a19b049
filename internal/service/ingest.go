package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/voyagen/streamscout/internal/fetcher"
	"github.com/voyagen/streamscout/internal/m3u"
	"github.com/voyagen/streamscout/internal/models"
	"github.com/voyagen/streamscout/internal/store"
)

// ErrNoInput is returned when neither a URL nor playlist content was given.
var ErrNoInput = errors.New("url or content is required")

// IngestRequest describes one playlist to persist. Exactly one of URL and
// Content is normally set; Content wins when both are.
type IngestRequest struct {
	Name      string
	URL       string
	Content   string
	UserAgent string
}

// IngestResult reports what Ingest stored.
type IngestResult struct {
	SourceID   int64  `json:"source_id"`
	Name       string `json:"name"`
	Channels   int    `json:"channels"`
	Duplicates int    `json:"duplicates"`
	Removed    int64  `json:"removed"`
}

// Ingest fetches (or takes) a playlist, parses it and stores the source and
// its channels. Existing channels are updated in place, keeping their last
// known status; channels that no longer appear are removed.
func Ingest(ctx context.Context, s store.Store, f *fetcher.Fetcher, req IngestRequest) (IngestResult, error) {
	var res IngestResult
	if req.URL == "" && req.Content == "" {
		return res, ErrNoInput
	}

	var (
		channels []*models.Channel
		stats    m3u.Stats
		err      error
	)
	sourceType := models.SourceTypeM3ULink
	if req.Content != "" {
		sourceType = models.SourceTypeM3UText
		channels, stats, err = fetcher.Decode([]byte(req.Content))
	} else {
		channels, stats, err = f.WithUserAgent(req.UserAgent).FetchM3U(ctx, req.URL)
		if errors.Is(err, fetcher.ErrFetchFailed) {
			err = fmt.Errorf("fetch: %w", err)
		}
	}
	if err != nil {
		return res, err
	}
	res.Duplicates = stats.Duplicates

	name := req.Name
	if name == "" {
		nameKey := req.URL
		if sourceType == models.SourceTypeM3UText {
			nameKey = ""
		}
		name, err = unnamedSourceName(ctx, s, nameKey)
		if err != nil {
			return res, err
		}
	}
	sourceID, err := s.CreateOrGetSource(ctx, name, req.URL, sourceType, req.UserAgent)
	if err != nil {
		return res, fmt.Errorf("CreateOrGetSource: %w", err)
	}
	res.SourceID, res.Name = sourceID, name

	n, removed, err := storeChannels(ctx, s, sourceID, channels)
	res.Channels, res.Removed = n, removed
	if err != nil {
		return res, err
	}
	log.Printf("ingest: source %d (%s): %d channels, %d duplicates dropped, %d removed",
		sourceID, name, res.Channels, res.Duplicates, res.Removed)
	return res, nil
}

// Refresh re-ingests a stored URL source.
func Refresh(ctx context.Context, s store.Store, f *fetcher.Fetcher, sourceID int64) (IngestResult, error) {
	src, err := s.GetSourceByID(ctx, sourceID)
	if err != nil {
		return IngestResult{}, err
	}
	if src.URL == "" {
		return IngestResult{}, fmt.Errorf("source %d has no url to refresh", sourceID)
	}
	return Ingest(ctx, s, f, IngestRequest{Name: src.Name, URL: src.URL, UserAgent: src.UserAgent})
}

func storeChannels(ctx context.Context, s store.Store, sourceID int64, channels []*models.Channel) (int, int64, error) {
	keepIDs := make([]int64, 0, len(channels))
	var withHeaders []int64
	groupIDs := make(map[string]int64)

	for i, ch := range channels {
		// Check for cancellation between rows so shutdown does not wait
		// for a large playlist.
		if err := ctx.Err(); err != nil {
			return len(keepIDs), 0, fmt.Errorf("ingest cancelled: %w", err)
		}

		ch.SourceID = sourceID
		ch.Position = i
		if ch.Group != "" {
			gid, ok := groupIDs[ch.Group]
			if !ok {
				var err error
				gid, err = s.GetOrCreateGroup(ctx, sourceID, ch.Group)
				if err != nil {
					return len(keepIDs), 0, fmt.Errorf("GetOrCreateGroup: %w", err)
				}
				groupIDs[ch.Group] = gid
			}
			ch.GroupID = &gid
		}

		cid, err := s.UpsertChannel(ctx, ch)
		if err != nil {
			return len(keepIDs), 0, fmt.Errorf("UpsertChannel: %w", err)
		}
		ch.ID = cid
		keepIDs = append(keepIDs, cid)

		if !ch.Headers.Empty() {
			if err := s.UpsertChannelHeaders(ctx, cid, ch.Headers); err != nil {
				return len(keepIDs), 0, fmt.Errorf("UpsertChannelHeaders: %w", err)
			}
			withHeaders = append(withHeaders, cid)
		}
	}

	removed, err := s.RemoveStaleChannels(ctx, sourceID, keepIDs)
	if err != nil {
		return len(keepIDs), 0, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	if _, err := s.RemoveOrphanedGroups(ctx, sourceID); err != nil {
		return len(keepIDs), removed, fmt.Errorf("RemoveOrphanedGroups: %w", err)
	}
	if _, err := s.RemoveStaleChannelHeaders(ctx, sourceID, withHeaders); err != nil {
		return len(keepIDs), removed, fmt.Errorf("RemoveStaleChannelHeaders: %w", err)
	}
	if err := s.UpdateSourceLastUpdated(ctx, sourceID); err != nil {
		return len(keepIDs), removed, fmt.Errorf("UpdateSourceLastUpdated: %w", err)
	}
	return len(keepIDs), removed, nil
}

// maxNameSuffix bounds the "-2", "-3" ... search before falling back to a
// random suffix.
const maxNameSuffix = 50

// unnamedSourceName picks a name for a source ingested without one. Sources
// are unique by name, so the result must not collide with an unrelated
// source: a URL already stored keeps its existing name, a new URL gets its
// DefaultSourceName plus a numeric suffix if taken, and pasted content
// (empty rawURL) always gets a fresh name.
func unnamedSourceName(ctx context.Context, s store.Store, rawURL string) (string, error) {
	if rawURL == "" {
		return "pasted-" + uuid.NewString()[:8], nil
	}
	src, err := s.GetSourceByURL(ctx, rawURL)
	if err == nil {
		return src.Name, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("GetSourceByURL: %w", err)
	}

	base := DefaultSourceName(rawURL)
	name := base
	for i := 2; i <= maxNameSuffix; i++ {
		_, err := s.GetSourceByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("GetSourceByName: %w", err)
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

// DefaultSourceName derives a readable name from the playlist URL: host and
// file name without extension ("example.com-get" for get.php), the host
// alone when there is no file name, else "m3u".
func DefaultSourceName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return "m3u"
	}
	base := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	hasBase := base != "" && base != "." && base != "/"
	switch {
	case u.Host != "" && hasBase:
		return u.Host + "-" + base
	case u.Host != "":
		return u.Host
	case hasBase:
		return base
	}
	return "m3u"
}
