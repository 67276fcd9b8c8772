package enrich

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/fetcher"
	"github.com/sells-group/standards-cli/internal/model"
)

// Source produces the detail rendered for a catalog entry.
type Source interface {
	Detail(ctx context.Context, entry model.CatalogEntry) (model.StandardDetail, error)
}

// Client fetches detail pages through a fetcher.Fetcher.
type Client struct {
	fetcher fetcher.Fetcher
	log     *zap.Logger
}

// NewClient creates a Client.
func NewClient(f fetcher.Fetcher) *Client {
	return &Client{
		fetcher: f,
		log:     zap.L().With(zap.String("component", "enrich")),
	}
}

// Detail fetches entry.TitleLink and merges the page values with catalog
// fallbacks. An entry without a link is rendered from catalog values alone.
// A failed fetch is returned as an error; nothing is rendered for it.
func (c *Client) Detail(ctx context.Context, entry model.CatalogEntry) (model.StandardDetail, error) {
	if entry.TitleLink == "" {
		c.log.Warn("entry has no title_link, rendering from catalog values",
			zap.String("identity", string(entry.Identity)),
		)
		return FromCatalog(entry), nil
	}

	body, err := c.fetcher.Download(ctx, entry.TitleLink)
	if err != nil {
		return model.StandardDetail{}, eris.Wrapf(err, "enrich: fetch %s", entry.TitleLink)
	}
	defer body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return model.StandardDetail{}, eris.Wrapf(err, "enrich: parse %s", entry.TitleLink)
	}

	x := Extract(doc)
	if x.DateOfEntry != "" {
		c.log.Debug("date_of_entry taken from detail page",
			zap.String("url", entry.TitleLink),
			zap.String("date_of_entry", x.DateOfEntry),
		)
	}
	return Merge(x, entry), nil
}

// Merge combines page values with the entry. The page date wins over the
// catalog date; anything still empty becomes model.NotAvailable.
func Merge(x Extracted, entry model.CatalogEntry) model.StandardDetail {
	date := x.DateOfEntry
	if date == "" {
		date = entry.DateOfEntry
	}
	return model.StandardDetail{
		FRRecognitionNumber: orNA(x.FRRecognitionNumber),
		DateOfEntry:         formatDate(date),
		Standard:            orNA(x.Standard),
		ScopeAbstract:       orNA(x.ScopeAbstract),
		ExtentOfRecognition: orNA(x.ExtentOfRecognition),
		SDO: model.SDOInfo{
			Acronym: orNA(x.SDO.Acronym),
			Name:    orNA(x.SDO.Name),
			Website: orNA(x.SDO.Website),
		},
	}
}

// FromCatalog builds a detail from catalog values only.
func FromCatalog(entry model.CatalogEntry) model.StandardDetail {
	return Merge(Extracted{
		FRRecognitionNumber: entry.RecognitionNumber,
		Standard:            entry.Designation,
		ExtentOfRecognition: entry.ExtentOfRecognition,
		SDO:                 model.SDOInfo{Acronym: entry.SDO},
	}, entry)
}

func formatDate(s string) string {
	if iso, ok := model.NormalizeDate(s); ok {
		return iso
	}
	return orNA(s)
}

func orNA(s string) string {
	if s == "" {
		return model.NotAvailable
	}
	return s
}
