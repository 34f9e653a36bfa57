package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
	"github.com/aluiziolira/go-scrape-gpus/parser"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStart  = "start"
	ctxBody   = "body"
	ctxStatus = "status"
)

// Fetcher retrieves a page and returns it as a queryable document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (parser.Document, error)
}

// FetchStats summarises the work done by a fetcher.
type FetchStats struct {
	Requests int
	Retries  int
	Errors   int
}

// CollyFetcher fetches pages synchronously through a shared colly collector.
// It is safe for concurrent use; the collector's limit rule bounds parallelism.
type CollyFetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryPolicy
	metrics   *Metrics

	requestCount int64
	retryCount   int64
	errorCount   int64
}

// NewCollyFetcher builds a fetcher configured from cfg.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) (*CollyFetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	if len(cfg.Proxies) > 0 {
		proxyFunc, err := newProxyFunc(cfg.Proxies, cfg.ProxyRotateEvery)
		if err != nil {
			return nil, fmt.Errorf("configure proxies: %w", err)
		}
		collector.SetProxyFunc(proxyFunc)
	}

	f := &CollyFetcher{
		cfg:       cfg,
		collector: collector,
		retry:     newRetryPolicy(cfg),
		metrics:   metrics,
	}
	f.configureHandlers()
	return f, nil
}

func (f *CollyFetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		current := atomic.AddInt64(&f.requestCount, 1)
		if current%50 == 0 {
			slog.Debug("fetch progress",
				slog.Int64("requests", current),
				slog.String("url", r.URL.String()),
			)
		}
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBody, r.Body)
		r.Ctx.Put(ctxStatus, r.StatusCode)
		f.observe(r.Ctx)
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(ctxStatus, r.StatusCode)
		f.observe(r.Ctx)
	})
}

func (f *CollyFetcher) observe(ctx *colly.Context) {
	if start, ok := ctx.GetAny(ctxStart).(time.Time); ok {
		f.metrics.ObserveDuration(time.Since(start))
	}
}

// Fetch retrieves url, retrying transient failures with exponential backoff.
// Failures are returned as *FetchError.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (parser.Document, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{URL: url, Err: classifyError(err, 0)}
		}

		doc, err := f.fetchOnce(url)
		if err == nil {
			return doc, nil
		}

		atomic.AddInt64(&f.errorCount, 1)
		category := errorTypeLabel(err)
		f.metrics.IncError(category)

		if !f.retry.allow(attempt+1, err) {
			slog.Error("request error",
				slog.String("url", url),
				slog.String("category", category),
				slog.Int("attempts", attempt+1),
				slog.Any("error", err),
			)
			return nil, &FetchError{URL: url, Err: err}
		}

		atomic.AddInt64(&f.retryCount, 1)
		f.metrics.IncRetries()
		delay := f.retry.backoff(attempt + 1)
		slog.Debug("retrying request",
			slog.String("url", url),
			slog.String("category", category),
			slog.Duration("delay", delay),
		)
		if err := sleepContext(ctx, delay); err != nil {
			return nil, &FetchError{URL: url, Err: classifyError(err, 0)}
		}
	}
}

func (f *CollyFetcher) fetchOnce(url string) (parser.Document, error) {
	cctx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, url, nil, cctx, nil)
	status, _ := cctx.GetAny(ctxStatus).(int)
	if err != nil {
		return nil, classifyError(err, status)
	}

	body, _ := cctx.GetAny(ctxBody).([]byte)
	doc, err := parser.NewDocument(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Stats returns request, retry and error counts so far.
func (f *CollyFetcher) Stats() FetchStats {
	return FetchStats{
		Requests: int(atomic.LoadInt64(&f.requestCount)),
		Retries:  int(atomic.LoadInt64(&f.retryCount)),
		Errors:   int(atomic.LoadInt64(&f.errorCount)),
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Status: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
