package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/streamscout/internal/models"
)

// ErrNotFound is returned when a source or channel does not exist.
var ErrNotFound = errors.New("not found")

// Store defines persistence for sources, groups, channels and channel headers.
type Store interface {
	// CreateOrGetSource creates a source by name if it does not exist and returns its id.
	CreateOrGetSource(ctx context.Context, name, url string, sourceType int16, userAgent string) (int64, error)
	GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error)
	GetSourceByName(ctx context.Context, name string) (*models.Source, error)
	// GetSourceByURL returns the oldest source fetched from url.
	GetSourceByURL(ctx context.Context, url string) (*models.Source, error)
	ListSources(ctx context.Context) ([]models.Source, error)
	// DeleteSource deletes a source; channels, groups and headers cascade.
	DeleteSource(ctx context.Context, sourceID int64) error
	UpdateSourceLastUpdated(ctx context.Context, sourceID int64) error
	UpdateSourceLastChecked(ctx context.Context, sourceID int64) error

	GetOrCreateGroup(ctx context.Context, sourceID int64, name string) (int64, error)
	// RemoveOrphanedGroups deletes groups of the source that have no channels left.
	RemoveOrphanedGroups(ctx context.Context, sourceID int64) (int64, error)
	ListGroups(ctx context.Context, sourceID *int64) ([]models.Group, error)

	// UpsertChannel inserts or updates a channel keyed by (source, url); returns its id.
	UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error)
	UpsertChannelHeaders(ctx context.Context, channelID int64, h *models.ChannelHttpHeaders) error
	// RemoveStaleChannelHeaders deletes header rows of the source's channels whose id is not in keepIDs.
	RemoveStaleChannelHeaders(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error)
	// RemoveStaleChannels deletes channels of the source whose id is not in keepIDs.
	RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error)
	// ListChannelsBySource returns all channels of a source in playlist order, headers included.
	ListChannelsBySource(ctx context.Context, sourceID int64) ([]*models.Channel, error)
	// ListChannels returns channels matching the filter and the total count before limit/offset.
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error)
	// UpdateChannelStatuses writes reachability results in one round trip.
	UpdateChannelStatuses(ctx context.Context, updates []StatusUpdate) error
}

// ChannelFilter holds optional filters for listing channels.
type ChannelFilter struct {
	SourceID *int64
	GroupID  *int64
	Status   models.Status // empty = any
	Search   string        // case-insensitive substring on name, group or url
	Limit    int           // default 50, max 500
	Offset   int
}

// Normalize clamps Limit and Offset.
func (f *ChannelFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// StatusUpdate is one channel's reachability result.
type StatusUpdate struct {
	ChannelID int64
	Status    models.Status
	CheckedAt time.Time
}
