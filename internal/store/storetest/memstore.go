// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/voyagen/streamscout/internal/models"
	"github.com/voyagen/streamscout/internal/store"
)

// MemStore is a goroutine-safe in-memory store.Store. It follows the
// Postgres semantics the services rely on: sources are unique by name,
// channels by (source, url), and an upsert keeps the stored status.
type MemStore struct {
	mu       sync.Mutex
	nextID   int64
	sources  map[int64]*models.Source
	groups   map[int64]*models.Group
	channels map[int64]*models.Channel
	headers  map[int64]models.ChannelHttpHeaders
}

var _ store.Store = (*MemStore)(nil)

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		sources:  map[int64]*models.Source{},
		groups:   map[int64]*models.Group{},
		channels: map[int64]*models.Channel{},
		headers:  map[int64]models.ChannelHttpHeaders{},
	}
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

// SetEnabled toggles a source's enabled flag.
func (m *MemStore) SetEnabled(id int64, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[id]; ok {
		s.Enabled = enabled
	}
}

// HeaderRows returns the number of stored header rows.
func (m *MemStore) HeaderRows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.headers)
}

func (m *MemStore) CreateOrGetSource(_ context.Context, name, url string, sourceType int16, userAgent string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.Name == name {
			s.URL, s.UserAgent = url, userAgent
			return s.ID, nil
		}
	}
	now := time.Now()
	s := &models.Source{ID: m.id(), Name: name, URL: url, SourceType: sourceType, UserAgent: userAgent, Enabled: true, CreatedAt: &now}
	m.sources[s.ID] = s
	return s.ID, nil
}

func (m *MemStore) GetSourceByID(_ context.Context, id int64) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *MemStore) GetSourceByName(_ context.Context, name string) (*models.Source, error) {
	return m.findSource(func(s *models.Source) bool { return s.Name == name })
}

func (m *MemStore) GetSourceByURL(_ context.Context, url string) (*models.Source, error) {
	return m.findSource(func(s *models.Source) bool { return s.URL == url })
}

// findSource returns the lowest-id source matching fn.
func (m *MemStore) findSource(fn func(*models.Source) bool) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := int64(1); id <= m.nextID; id++ {
		if s, ok := m.sources[id]; ok && fn(s) {
			c := *s
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) ListSources(context.Context) ([]models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Source, 0, len(m.sources))
	for id := int64(1); id <= m.nextID; id++ {
		if s, ok := m.sources[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *MemStore) DeleteSource(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.sources, id)
	for cid, ch := range m.channels {
		if ch.SourceID == id {
			delete(m.channels, cid)
			delete(m.headers, cid)
		}
	}
	for gid, g := range m.groups {
		if g.SourceID == id {
			delete(m.groups, gid)
		}
	}
	return nil
}

func (m *MemStore) UpdateSourceLastUpdated(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	s.LastUpdated = &now
	return nil
}

func (m *MemStore) UpdateSourceLastChecked(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	s.LastChecked = &now
	return nil
}

func (m *MemStore) GetOrCreateGroup(_ context.Context, sourceID int64, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.SourceID == sourceID && g.Name == name {
			return g.ID, nil
		}
	}
	g := &models.Group{ID: m.id(), Name: name, SourceID: sourceID}
	m.groups[g.ID] = g
	return g.ID, nil
}

func (m *MemStore) RemoveOrphanedGroups(_ context.Context, sourceID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for gid, g := range m.groups {
		if g.SourceID != sourceID {
			continue
		}
		used := false
		for _, ch := range m.channels {
			if ch.GroupID != nil && *ch.GroupID == gid {
				used = true
				break
			}
		}
		if !used {
			delete(m.groups, gid)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListGroups(_ context.Context, sourceID *int64) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Group
	for _, g := range m.groups {
		if sourceID != nil && g.SourceID != *sourceID {
			continue
		}
		grp := *g
		for _, ch := range m.channels {
			if ch.GroupID != nil && *ch.GroupID == g.ID {
				grp.ChannelCount++
			}
		}
		out = append(out, grp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpsertChannel(_ context.Context, ch *models.Channel) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *ch
	c.Headers = nil
	for id, existing := range m.channels {
		if existing.SourceID == ch.SourceID && existing.URL == ch.URL {
			c.ID, c.Status, c.CheckedAt = id, existing.Status, existing.CheckedAt
			m.channels[id] = &c
			return id, nil
		}
	}
	c.ID = m.id()
	if c.Status == "" {
		c.Status = models.StatusUnknown
	}
	m.channels[c.ID] = &c
	return c.ID, nil
}

func (m *MemStore) UpsertChannelHeaders(_ context.Context, channelID int64, h *models.ChannelHttpHeaders) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[channelID] = *h
	return nil
}

func (m *MemStore) RemoveStaleChannelHeaders(_ context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := idSet(keepIDs)
	var n int64
	for id := range m.headers {
		ch, ok := m.channels[id]
		if ok && ch.SourceID == sourceID && !keep[id] {
			delete(m.headers, id)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) RemoveStaleChannels(_ context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := idSet(keepIDs)
	var n int64
	for id, ch := range m.channels {
		if ch.SourceID == sourceID && !keep[id] {
			delete(m.channels, id)
			delete(m.headers, id)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListChannelsBySource(_ context.Context, sourceID int64) ([]*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bySource(sourceID), nil
}

// bySource must be called with m.mu held.
func (m *MemStore) bySource(sourceID int64) []*models.Channel {
	out := make([]*models.Channel, 0)
	for id, ch := range m.channels {
		if ch.SourceID != sourceID {
			continue
		}
		c := *ch
		if h, ok := m.headers[id]; ok {
			c.Headers = &h
		}
		c.MimeHint = c.StreamType.MimeHint(c.URL)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemStore) ListChannels(_ context.Context, f store.ChannelFilter) ([]models.Channel, int, error) {
	f.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	if f.SourceID != nil {
		ids = []int64{*f.SourceID}
	} else {
		for id := int64(1); id <= m.nextID; id++ {
			if _, ok := m.sources[id]; ok {
				ids = append(ids, id)
			}
		}
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))

	var matched []models.Channel
	for _, sid := range ids {
		for _, ch := range m.bySource(sid) {
			if f.GroupID != nil && (ch.GroupID == nil || *ch.GroupID != *f.GroupID) {
				continue
			}
			if f.Status != "" && ch.Status != f.Status {
				continue
			}
			if term != "" && !strings.Contains(strings.ToLower(ch.Name+"\x00"+ch.Group+"\x00"+ch.URL), term) {
				continue
			}
			matched = append(matched, *ch)
		}
	}
	total := len(matched)
	if f.Offset >= total {
		return []models.Channel{}, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return matched[f.Offset:end], total, nil
}

func (m *MemStore) UpdateChannelStatuses(_ context.Context, updates []store.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		if ch, ok := m.channels[u.ChannelID]; ok {
			ch.Status = u.Status
			at := u.CheckedAt
			ch.CheckedAt = &at
		}
	}
	return nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
