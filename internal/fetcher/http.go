package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/standards-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond is the starting per-host rate. Zero means 2.
	RequestsPerSecond float64
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher using net/http with per-host rate limiting.
// Each Download is exactly one request.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "standards-cli/1.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the host's limiter, creating it on first use.
func (f *HTTPFetcher) limiterFor(u *url.URL) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		burst := max(int(f.opts.RequestsPerSecond), 1)
		lim = NewAdaptiveLimiter(rate.Limit(f.opts.RequestsPerSecond), burst)
		f.limiters[u.Host] = lim
	}
	return lim
}

// Download fetches the URL and returns the response body. Statuses
// classified by resilience.IsTransientHTTPStatus come back as a
// *resilience.TransientError.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	lim := f.limiterFor(req.URL)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		lim.OnRateLimit()
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		statusErr := eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	lim.OnSuccess()
	return resp.Body, nil
}
