package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
	"github.com/aluiziolira/go-scrape-gpus/models"
	"github.com/aluiziolira/go-scrape-gpus/parser"
	"golang.org/x/sync/errgroup"
)

// Crawler walks one store's listing pages and extracts a record per product link.
type Crawler struct {
	site     config.SiteConfig
	fetcher  Fetcher
	metrics  *Metrics
	maxPages int
	workers  int
	now      func() time.Time
	logger   *slog.Logger
}

// NewCrawler validates site and binds it to fetcher.
func NewCrawler(cfg *config.Config, site config.SiteConfig, fetcher Fetcher, metrics *Metrics) (*Crawler, error) {
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, fmt.Errorf("crawler for %s: fetcher is nil", site.StoreName)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	workers := cfg.Parallelism
	if workers <= 0 {
		workers = 1
	}
	return &Crawler{
		site:     site,
		fetcher:  fetcher,
		metrics:  metrics,
		maxPages: site.PageLimit(cfg.MaxPages),
		workers:  workers,
		now:      time.Now,
		logger:   slog.With(slog.String("store", site.StoreName)),
	}, nil
}

// Crawl validates site and crawls it to completion.
func Crawl(ctx context.Context, cfg *config.Config, site config.SiteConfig, fetcher Fetcher) (*models.CrawlResult, error) {
	c, err := NewCrawler(cfg, site, fetcher, nil)
	if err != nil {
		return nil, err
	}
	return c.Crawl(ctx)
}

// Crawl fetches listing pages strictly in order until the pager reports the last
// page or the page limit is reached. Any fetch failure aborts the crawl and no
// partial result is returned.
func (c *Crawler) Crawl(ctx context.Context) (*models.CrawlResult, error) {
	result := &models.CrawlResult{StoreName: c.site.StoreName}
	pageIndex := c.site.PageIndexOrigin

	for {
		if result.Pages >= c.maxPages {
			c.logger.Warn("page limit reached before last page",
				slog.Int("max_pages", c.maxPages),
				slog.Int("page", pageIndex),
			)
			break
		}

		listingURL := c.site.ListingURL(pageIndex)
		c.metrics.IncRequest("listing")
		listing, err := c.fetcher.Fetch(ctx, listingURL)
		if err != nil {
			return nil, err
		}
		result.LastFetch = latest(result.LastFetch, c.now())
		result.Pages++
		c.metrics.IncPages(c.site.StoreName)

		records, lastFetch, err := c.handlePage(ctx, listing)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, records...)
		result.LastFetch = latest(result.LastFetch, lastFetch)
		c.metrics.AddItems(c.site.StoreName, len(records))

		ordinal := c.site.Ordinal(pageIndex)
		last := parser.IsLastPage(parser.Texts(listing.Select(c.site.PageIndicatorSelector)), ordinal)
		c.logger.Info("listing page processed",
			slog.Int("page", pageIndex),
			slog.Int("items", len(records)),
			slog.Bool("last", last),
		)
		if last {
			break
		}
		pageIndex++
	}

	return result, nil
}

// handlePage fetches every detail page linked from listing using a bounded worker pool.
func (c *Crawler) handlePage(ctx context.Context, listing parser.Document) ([]models.GpuRecord, time.Time, error) {
	var urls []string
	for _, link := range listing.Select(c.site.ItemLinkSelector) {
		href, ok := link.Attr("href")
		if !ok {
			c.logger.Debug("item link without href skipped")
			continue
		}
		itemURL, err := c.site.ResolveURL(href)
		if err != nil {
			c.logger.Debug("item link skipped", slog.String("href", href), slog.Any("error", err))
			continue
		}
		urls = append(urls, itemURL)
	}

	records := make([]models.GpuRecord, len(urls))
	fetched := make([]time.Time, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, itemURL := range urls {
		g.Go(func() error {
			c.metrics.IncRequest("detail")
			detail, err := c.fetcher.Fetch(gctx, itemURL)
			if err != nil {
				return err
			}
			fetched[i] = c.now()
			records[i] = c.extractRecord(detail, itemURL, fetched[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, time.Time{}, err
	}

	var last time.Time
	for _, ts := range fetched {
		last = latest(last, ts)
	}
	return records, last, nil
}

// extractRecord builds a record from a detail page. Each field falls back to its
// default independently; degraded fields are logged and counted, never returned as errors.
func (c *Crawler) extractRecord(doc parser.Document, itemURL string, fetchedAt time.Time) models.GpuRecord {
	var degraded []string

	model, ok := parser.ParseModel(
		parser.Texts(doc.Select(c.site.ModelFeatureSelector)),
		c.site.ModelFeatureKey,
		c.site.FeatureKeyValueSeparator,
	)
	if !ok || model == "" {
		degraded = append(degraded, "gpu_model")
	}

	var name string
	if raw, found := parser.FirstText(doc, c.site.NameSelector); found {
		name = parser.ParseName(raw)
	}
	if name == "" {
		degraded = append(degraded, "gpu_name")
	}

	var price string
	if raw, found := parser.FirstText(doc, c.site.PriceSelector); found {
		price, _ = parser.ParsePrice(raw)
	}
	if price == "" {
		degraded = append(degraded, "gpu_price")
	}

	rawStock, stockFound := parser.FirstText(doc, c.site.StockSelector)
	if !stockFound {
		degraded = append(degraded, "in_stock")
	}
	inStock := parser.ParseStock(rawStock, stockFound, c.site.StockSentinel())

	for _, field := range degraded {
		c.metrics.IncDegradation(c.site.StoreName, field)
	}
	if len(degraded) > 0 {
		c.logger.Debug("fields defaulted",
			slog.String("url", itemURL),
			slog.Any("fields", degraded),
		)
	}

	return models.GpuRecord{
		StoreName:      c.site.StoreName,
		GpuModel:       model,
		GpuName:        name,
		FetchTimestamp: fetchedAt.Unix(),
		GpuPrice:       price,
		InStock:        inStock,
		URL:            itemURL,
	}
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
