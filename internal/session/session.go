// Package session keeps parsed playlists in memory together with their
// reachability state. Each Session owns its channel list; every read goes
// through a snapshot so a running check never races with callers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/voyagen/streamscout/internal/checker"
	"github.com/voyagen/streamscout/internal/fetcher"
	"github.com/voyagen/streamscout/internal/filter"
	"github.com/voyagen/streamscout/internal/m3u"
	"github.com/voyagen/streamscout/internal/models"
)

var (
	ErrNotPlaylist = fetcher.ErrNotPlaylist
	ErrNoChannels  = fetcher.ErrNoChannels
	// ErrCheckRunning is returned when a check is already in progress.
	ErrCheckRunning = errors.New("check already running")
)

// Session is one loaded playlist.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time

	mu        sync.RWMutex
	source    string
	channels  []*models.Channel
	updatedAt time.Time
	lastCheck *checker.Summary
	checking  atomic.Bool
}

// Info is the externally visible summary of a session.
type Info struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Source    string           `json:"source,omitempty"`
	Total     int              `json:"total"`
	Online    int              `json:"online"`
	Offline   int              `json:"offline"`
	Groups    int              `json:"groups"`
	Checking  bool             `json:"checking"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	LastCheck *checker.Summary `json:"last_check,omitempty"`
}

// New returns an empty session.
func New(id, name string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Name: name, CreatedAt: now, updatedAt: now}
}

// Load replaces the channel list with the playlist in text. On any error
// the previous list is kept.
func (s *Session) Load(text string) error {
	return s.LoadBytes([]byte(text))
}

// LoadBytes is Load for raw bytes in any supported encoding.
func (s *Session) LoadBytes(raw []byte) error {
	channels, _, err := fetcher.Decode(raw)
	if err != nil {
		return err
	}
	s.replace(channels, "")
	return nil
}

// LoadURL fetches target through f and loads the result.
func (s *Session) LoadURL(ctx context.Context, f *fetcher.Fetcher, target string) error {
	channels, _, err := f.FetchM3U(ctx, target)
	if err != nil {
		return err
	}
	s.replace(channels, target)
	return nil
}

func (s *Session) replace(channels []*models.Channel, source string) {
	s.mu.Lock()
	s.channels = channels
	s.source = source
	s.updatedAt = time.Now().UTC()
	s.lastCheck = nil
	s.mu.Unlock()
}

// Check runs a reachability pass over the current channels. Only one pass
// may run per session at a time.
func (s *Session) Check(ctx context.Context, c *checker.Checker) (checker.Summary, error) {
	if !s.checking.CompareAndSwap(false, true) {
		return checker.Summary{}, ErrCheckRunning
	}
	defer s.checking.Store(false)

	s.mu.RLock()
	channels := s.channels
	s.mu.RUnlock()

	sum := c.CheckAllLocked(ctx, channels, &s.mu)

	s.mu.Lock()
	s.lastCheck = &sum
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
	return sum, nil
}

// Checking reports whether a pass is in progress.
func (s *Session) Checking() bool {
	return s.checking.Load()
}

// Channels returns a copy of the current channel list.
func (s *Session) Channels() []*models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Channel, len(s.channels))
	for i, ch := range s.channels {
		c := *ch
		out[i] = &c
	}
	return out
}

// Filter returns the channels matching term, optionally without offline ones.
func (s *Session) Filter(term string, hideOffline bool) []*models.Channel {
	out := filter.Filter(s.Channels(), term)
	if hideOffline {
		out = filter.HideOffline(out)
	}
	return out
}

// Groups lists groups in order of first appearance with their channel
// counts. Channels without a group are not listed.
func (s *Session) Groups() []models.Group {
	groups := orderedmap.New[string, int]()
	for _, ch := range s.Channels() {
		if ch.Group == "" {
			continue
		}
		n, _ := groups.Get(ch.Group)
		groups.Set(ch.Group, n+1)
	}
	out := make([]models.Group, 0, groups.Len())
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, models.Group{Name: pair.Key, ChannelCount: pair.Value})
	}
	return out
}

// ExportM3U renders the session as M3U text.
func (s *Session) ExportM3U(onlineOnly bool) string {
	return m3u.EncodeString(s.Channels(), m3u.EncodeOptions{OnlineOnly: onlineOnly})
}

// Summary describes the session without its channels.
func (s *Session) Summary() Info {
	channels := s.Channels()
	online, offline := filter.Counts(channels)

	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		ID:        s.ID,
		Name:      s.Name,
		Source:    s.source,
		Total:     len(channels),
		Online:    online,
		Offline:   offline,
		Groups:    len(s.groupNames()),
		Checking:  s.checking.Load(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
	if s.lastCheck != nil {
		lc := *s.lastCheck
		info.LastCheck = &lc
	}
	return info
}

// groupNames must be called with s.mu held.
func (s *Session) groupNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, ch := range s.channels {
		if ch.Group != "" {
			names[ch.Group] = struct{}{}
		}
	}
	return names
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.ID, s.Name)
}
