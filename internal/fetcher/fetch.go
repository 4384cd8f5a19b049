// Package fetcher downloads playlist text, trying the URL directly first and
// then each configured proxy in order.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/voyagen/streamscout/internal/m3u"
	"github.com/voyagen/streamscout/internal/models"
)

var (
	// ErrFetchFailed is returned when neither the direct request nor any
	// proxy produced a usable body.
	ErrFetchFailed = errors.New("could not fetch playlist")
	// ErrNotPlaylist means the body does not look like M3U text.
	ErrNotPlaylist = errors.New("content is not an M3U playlist")
	// ErrNoChannels means the playlist parsed to zero channels.
	ErrNoChannels = errors.New("no channels found")
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "streamscout/1.0"

	// Bodies shorter than this are treated as failures.
	minBodyLen = 10
	// URLPlaceholder is replaced by the escaped target in proxy templates.
	URLPlaceholder = "{url}"
)

// Fetcher retrieves remote playlists.
type Fetcher struct {
	client  *req.Client
	proxies []string
}

// New returns a Fetcher. proxies are URL templates containing {url},
// e.g. "https://proxy.example/raw?url={url}".
func New(timeout time.Duration, userAgent string, proxies []string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	client := req.C().
		SetTimeout(timeout).
		SetUserAgent(userAgent).
		SetCommonHeader("Accept", "*/*").
		SetCommonHeader("Cache-Control", "no-cache")

	var valid []string
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, URLPlaceholder) {
			log.Printf("fetcher: ignoring proxy template without %s: %s", URLPlaceholder, p)
			continue
		}
		valid = append(valid, p)
	}
	return &Fetcher{client: client, proxies: valid}
}

// WithUserAgent returns a copy of f that sends ua instead of the default.
func (f *Fetcher) WithUserAgent(ua string) *Fetcher {
	if ua == "" {
		return f
	}
	return &Fetcher{client: f.client.Clone().SetUserAgent(ua), proxies: f.proxies}
}

// Fetch returns the raw body of the first attempt that succeeds.
// All attempt errors are joined under ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, fmt.Errorf("%w: invalid url %q", ErrFetchFailed, target)
	}

	attempts := append([]string{target}, f.proxyURLs(target)...)
	errs := []error{ErrFetchFailed}
	for i, u := range attempts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		body, err := f.get(ctx, u)
		if err == nil {
			if i > 0 {
				log.Printf("fetcher: %s fetched through proxy %d", target, i)
			}
			return body, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// FetchText is Fetch followed by text normalization.
func (f *Fetcher) FetchText(ctx context.Context, target string) (string, error) {
	raw, err := f.Fetch(ctx, target)
	if err != nil {
		return "", err
	}
	return m3u.Normalize(raw), nil
}

// FetchM3U fetches, validates and parses a playlist.
func (f *Fetcher) FetchM3U(ctx context.Context, target string) ([]*models.Channel, m3u.Stats, error) {
	text, err := f.FetchText(ctx, target)
	if err != nil {
		return nil, m3u.Stats{}, err
	}
	channels, stats, err := ParseText(text)
	if err != nil {
		return nil, stats, err
	}
	log.Printf("fetcher: %s parsed %d channels (%d duplicates dropped)", target, len(channels), stats.Duplicates)
	return channels, stats, nil
}

// Decode normalizes raw playlist bytes (uploads, pasted text) and parses them
// the same way FetchM3U does.
func Decode(raw []byte) ([]*models.Channel, m3u.Stats, error) {
	return ParseText(m3u.Normalize(raw))
}

// ParseText validates normalized text and parses it. It returns
// ErrNotPlaylist or ErrNoChannels instead of an empty list.
func ParseText(text string) ([]*models.Channel, m3u.Stats, error) {
	if !m3u.LooksLikeM3U(text) {
		return nil, m3u.Stats{}, ErrNotPlaylist
	}
	channels, stats := m3u.ParseNormalized(text)
	if len(channels) == 0 {
		return nil, stats, ErrNoChannels
	}
	return channels, stats, nil
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("GET %s: HTTP %d", u, resp.StatusCode)
	}
	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", u, err)
	}
	if len(body) < minBodyLen {
		return nil, fmt.Errorf("GET %s: body too short (%d bytes)", u, len(body))
	}
	return body, nil
}

func (f *Fetcher) proxyURLs(target string) []string {
	escaped := url.QueryEscape(target)
	out := make([]string, len(f.proxies))
	for i, p := range f.proxies {
		out[i] = strings.ReplaceAll(p, URLPlaceholder, escaped)
	}
	return out
}
