package checker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"github.com/voyagen/streamscout/internal/models"
)

// DefaultUserAgent is sent with every probe unless the channel carries its own.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxManifestBytes caps how much of an HLS manifest is read for validation.
const maxManifestBytes = 1 << 20

// Prober performs one reachability request. It must honour ctx and must
// only read from ch.
type Prober interface {
	Probe(ctx context.Context, ch *models.Channel) Outcome
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, ch *models.Channel) Outcome

func (f ProberFunc) Probe(ctx context.Context, ch *models.Channel) Outcome { return f(ctx, ch) }

// HTTPProber issues a HEAD request per channel.
type HTTPProber struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPProber returns an HTTPProber with a dedicated client. Redirects are
// followed; the per-probe deadline comes from the context.
func NewHTTPProber(userAgent string) *HTTPProber {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPProber{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       30 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		UserAgent: userAgent,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, ch *models.Channel) Outcome {
	resp, err := p.do(ctx, http.MethodHead, ch)
	if err != nil {
		return Outcome{Err: err}
	}
	resp.Body.Close()
	return Outcome{StatusCode: resp.StatusCode}
}

func (p *HTTPProber) do(ctx context.Context, method string, ch *models.Channel) (*http.Response, error) {
	if !isHTTP(ch.URL) {
		return nil, fmt.Errorf("probe %s: unsupported scheme", ch.URL)
	}
	req, err := http.NewRequestWithContext(ctx, method, ch.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	req.Header.Set("User-Agent", p.UserAgent)
	if h := ch.Headers; !h.Empty() {
		if h.Referrer != "" {
			req.Header.Set("Referer", h.Referrer)
		}
		if h.UserAgent != "" {
			req.Header.Set("User-Agent", h.UserAgent)
		}
		if h.HTTPOrigin != "" {
			req.Header.Set("Origin", h.HTTPOrigin)
		}
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", ch.URL, err)
	}
	return resp, nil
}

func isHTTP(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ManifestProber downloads HLS manifests and requires them to decode as
// a master or media playlist. Other stream types go to Fallback.
type ManifestProber struct {
	HTTP     *HTTPProber
	Fallback Prober
}

// NewManifestProber wraps p. p is also used as the fallback.
func NewManifestProber(p *HTTPProber) *ManifestProber {
	return &ManifestProber{HTTP: p, Fallback: p}
}

func (m *ManifestProber) Probe(ctx context.Context, ch *models.Channel) Outcome {
	if ch.StreamType != models.StreamHLS {
		return m.Fallback.Probe(ctx, ch)
	}
	resp, err := m.HTTP.do(ctx, http.MethodGet, ch)
	if err != nil {
		return Outcome{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{StatusCode: resp.StatusCode, Err: fmt.Errorf("manifest %s: status %d", ch.URL, resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return Outcome{StatusCode: resp.StatusCode, Err: fmt.Errorf("manifest %s: %w", ch.URL, err)}
	}
	if _, _, err := m3u8.DecodeFrom(bytes.NewReader(body), false); err != nil {
		return Outcome{StatusCode: resp.StatusCode, Err: fmt.Errorf("manifest %s: %w", ch.URL, err)}
	}
	return Outcome{StatusCode: resp.StatusCode}
}
