package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
	"github.com/aluiziolira/go-scrape-gpus/models"
)

// RunSites crawls every site concurrently. Each site owns its own outcome slot, so a
// failing site never affects the others and no locking is needed to merge results.
func RunSites(ctx context.Context, cfg *config.Config, sites []config.SiteConfig, fetcher Fetcher, metrics *Metrics) *models.ScraperResult {
	start := time.Now()
	outcomes := make([]models.SiteOutcome, len(sites))

	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = runSite(ctx, cfg, site, fetcher, metrics)
		}()
	}
	wg.Wait()

	result := &models.ScraperResult{
		Sites:        outcomes,
		StartTime:    start,
		EndTime:      time.Now(),
		ErrorsByType: make(map[string]int),
	}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			result.ErrorCount++
			result.FailedSites = append(result.FailedSites, outcome.StoreName)
			result.ErrorsByType[errorTypeLabel(outcome.Err)]++
			continue
		}
		result.TotalCount += len(outcome.Result.Records)
		result.PageCount += outcome.Result.Pages
	}
	if stats, ok := fetcher.(interface{ Stats() FetchStats }); ok {
		s := stats.Stats()
		result.RequestCount = s.Requests
		result.RetryCount = s.Retries
	}
	return result
}

func runSite(ctx context.Context, cfg *config.Config, site config.SiteConfig, fetcher Fetcher, metrics *Metrics) models.SiteOutcome {
	outcome := models.SiteOutcome{StoreName: site.StoreName}

	crawler, err := NewCrawler(cfg, site, fetcher, metrics)
	if err != nil {
		slog.Error("site skipped", slog.String("store", site.StoreName), slog.Any("error", err))
		outcome.Err = err
		return outcome
	}

	slog.Info("starting site crawl",
		slog.String("store", site.StoreName),
		slog.String("listing", site.ListingURL(site.PageIndexOrigin)),
	)
	result, err := crawler.Crawl(ctx)
	if err != nil {
		slog.Error("site crawl aborted", slog.String("store", site.StoreName), slog.Any("error", err))
		outcome.Err = err
		return outcome
	}

	slog.Info("site crawl finished",
		slog.String("store", site.StoreName),
		slog.Int("records", len(result.Records)),
		slog.Int("pages", result.Pages),
	)
	outcome.Result = result
	return outcome
}
