package listing

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/fetcher"
	"github.com/sells-group/standards-cli/internal/model"
)

// Default pagination settings.
const (
	DefaultPageSize  = 500
	DefaultPageDelay = time.Second
)

// Outcome aliases so callers of this package need not import model for them.
const (
	OutcomeExhausted = model.CrawlExhausted
	OutcomeAborted   = model.CrawlAborted
)

// CrawlerConfig configures a Crawler.
type CrawlerConfig struct {
	BaseURL   string
	PageSize  int
	PageDelay time.Duration
}

// Result is the outcome of a crawl. Records holds everything gathered
// before the crawl stopped, including after an abort.
type Result struct {
	Records []model.StandardRecord
	Pages   int
	Outcome model.CrawlOutcome
	Err     error
}

// RecordSet wraps the crawled records for the catalog sync.
func (r Result) RecordSet() model.RecordSet {
	return model.NewRecordSet(r.Records)
}

// Crawler walks the listing page by page until a short or empty page.
type Crawler struct {
	fetcher   fetcher.Fetcher
	base      *url.URL
	pageSize  int
	pageDelay time.Duration
	log       *zap.Logger
}

// NewCrawler validates cfg and returns a Crawler. A zero PageSize means
// DefaultPageSize. A negative PageDelay disables pacing.
func NewCrawler(f fetcher.Fetcher, cfg CrawlerConfig) (*Crawler, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "listing: parse base url %q", cfg.BaseURL)
	}
	if !base.IsAbs() {
		return nil, eris.Errorf("listing: base url %q is not absolute", cfg.BaseURL)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Crawler{
		fetcher:   f,
		base:      base,
		pageSize:  cfg.PageSize,
		pageDelay: max(cfg.PageDelay, 0),
		log:       zap.L().With(zap.String("component", "listing.crawler")),
	}, nil
}

// PageURL returns the listing URL for the page starting at the 1-based
// record offset start.
func (c *Crawler) PageURL(start int) string {
	u := *c.base
	q := u.Query()
	q.Set("standardsearch", "1")
	q.Set("start_search", strconv.Itoa(start))
	q.Set("pagenum", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// Crawl fetches pages at offsets 1, 1+P, 1+2P... A fetch or parse failure,
// or context cancellation, ends the crawl as aborted with the partial
// records kept. Nothing is retried.
func (c *Crawler) Crawl(ctx context.Context) Result {
	var (
		res   Result
		state ParseState
		start = 1
	)

	for {
		if res.Pages > 0 && c.pageDelay > 0 {
			if err := sleep(ctx, c.pageDelay); err != nil {
				return c.abort(res, start, eris.Wrap(err, "listing: page delay"))
			}
		}

		records, err := c.fetchPage(ctx, start, &state)
		if err != nil {
			return c.abort(res, start, err)
		}
		res.Pages++

		if len(records) == 0 {
			c.log.Info("no data found, stopping", zap.Int("start", start))
			break
		}
		res.Records = append(res.Records, records...)
		c.log.Info("page scraped",
			zap.Int("start", start),
			zap.Int("records", len(records)),
			zap.Int("total", len(res.Records)),
		)
		if len(records) < c.pageSize {
			c.log.Info("last page reached", zap.Int("start", start))
			break
		}
		start += c.pageSize
	}

	res.Outcome = OutcomeExhausted
	c.log.Info("crawl complete",
		zap.Int("pages", res.Pages),
		zap.Int("records", len(res.Records)),
	)
	return res
}

func (c *Crawler) fetchPage(ctx context.Context, start int, st *ParseState) ([]model.StandardRecord, error) {
	body, err := c.fetcher.Download(ctx, c.PageURL(start))
	if err != nil {
		return nil, eris.Wrapf(err, "listing: fetch page %d", start)
	}
	defer body.Close() //nolint:errcheck

	records, err := ParsePage(body, c.base, st)
	if err != nil {
		return nil, eris.Wrapf(err, "listing: parse page %d", start)
	}
	return records, nil
}

func (c *Crawler) abort(res Result, start int, err error) Result {
	res.Outcome = OutcomeAborted
	res.Err = err
	c.log.Error("crawl aborted",
		zap.Int("start", start),
		zap.Int("records", len(res.Records)),
		zap.Error(err),
	)
	return res
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
