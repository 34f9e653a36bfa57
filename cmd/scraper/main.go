package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
	"github.com/aluiziolira/go-scrape-gpus/models"
	"github.com/aluiziolira/go-scrape-gpus/pipeline"
	"github.com/aluiziolira/go-scrape-gpus/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	parallelDefault := defaultCfg.Parallelism
	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PARALLEL: %v\n", err)
		os.Exit(1)
	} else if ok {
		parallelDefault = value
	}
	sitesDefault := defaultCfg.SitesFile
	if value, ok := config.EnvString("SCRAPER_SITES"); ok {
		sitesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	proxiesDefault := ""
	if value, ok := config.EnvList("SCRAPER_PROXIES"); ok {
		proxiesDefault = strings.Join(value, ",")
	}

	sitesFile := flag.String("sites", sitesDefault, "Site definitions file (yaml, json or toml); built-in stores when empty")
	maxPages := flag.Int("pages", pagesDefault, "Maximum listing pages per site when the pager never reports the last page")
	parallelism := flag.Int("parallel", parallelDefault, "Number of concurrent requests")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", 0, "Random jitter added to delay (milliseconds)")
	timeoutMs := flag.Int("timeout", int(defaultCfg.Timeout/time.Millisecond), "Per-request timeout (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", 200, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 2000, "Maximum retry backoff (milliseconds)")
	proxies := flag.String("proxies", proxiesDefault, "Comma separated proxy URLs, e.g. socks5://127.0.0.1:9050")
	proxyRotateEvery := flag.Int("proxy-rotate-every", defaultCfg.ProxyRotateEvery, "Requests sent through a proxy before switching to the next")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json (JSON Lines), or dual (csv plus a .jsonl beside it)")
	userAgent := flag.String("user-agent", defaultCfg.UserAgent, "User-Agent header sent with every request")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.SitesFile = *sitesFile
	cfg.MaxPages = *maxPages
	cfg.Parallelism = *parallelism
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.Proxies = config.SplitList(*proxies)
	cfg.ProxyRotateEvery = *proxyRotateEvery
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.UserAgent = *userAgent
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	sites, err := loadSites(cfg.SitesFile)
	if err != nil {
		slog.Error("loading sites", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.Int("sites", len(sites)),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
		slog.Int("proxies", len(cfg.Proxies)),
	)

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewCollyFetcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result := scraper.RunSites(ctx, cfg, sites, fetcher, metrics)

	// one worker keeps rows in crawl order
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}
	if err := p.Process(result.Records()...); err != nil {
		slog.Error("queueing records failed", slog.Any("error", err))
	}
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg.OutputFile, p.GetMetrics())

	if len(sites) > 0 && result.ErrorCount == len(sites) {
		os.Exit(1)
	}
}

func loadSites(path string) ([]config.SiteConfig, error) {
	if path == "" {
		return config.DefaultSites(), nil
	}
	return config.LoadSites(path)
}

func printSummary(result *models.ScraperResult, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	for _, site := range result.Sites {
		if site.Err != nil {
			fmt.Printf("  %-14s failed: %v\n", site.StoreName, site.Err)
			continue
		}
		fmt.Printf("  %-14s %d records from %d pages, last fetch %s\n",
			site.StoreName, len(site.Result.Records), site.Result.Pages, site.Result.LastFetch.Format(time.RFC3339))
	}

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}
	duration := result.EndTime.Sub(result.StartTime)

	fmt.Printf("  Records:       %d\n", result.TotalCount)
	fmt.Printf("  Written:       %d\n", written)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed sites:  %d\n", len(result.FailedSites))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	if duration.Seconds() > 0 {
		fmt.Printf("  Items/sec:     %.2f\n", float64(result.TotalCount)/duration.Seconds())
	}
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
