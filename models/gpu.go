// Package models defines data structures for the scraper.
package models

import "time"

// Columns is the canonical output schema, in order.
var Columns = []string{"store_name", "gpu_model", "gpu_name", "fetch_ts", "gpu_price", "in_stock", "url"}

// GpuRecord represents one product extracted from a store detail page.
type GpuRecord struct {
	StoreName      string `csv:"store_name" json:"store_name"`
	GpuModel       string `csv:"gpu_model" json:"gpu_model"`
	GpuName        string `csv:"gpu_name" json:"gpu_name"`
	FetchTimestamp int64  `csv:"fetch_ts" json:"fetch_ts"`
	GpuPrice       string `csv:"gpu_price" json:"gpu_price"`
	InStock        bool   `csv:"in_stock" json:"in_stock"`
	URL            string `csv:"url" json:"url"`
}

// CrawlResult is the record set produced by crawling one site.
type CrawlResult struct {
	StoreName string
	Records   []GpuRecord
	// LastFetch is the time of the most recent fetch performed during the crawl.
	LastFetch time.Time
	Pages     int
}

// SiteOutcome pairs a site with its crawl result or the error that aborted it.
type SiteOutcome struct {
	StoreName string
	Result    *CrawlResult
	Err       error
}

// ScraperResult holds the overall result of a multi-site run.
type ScraperResult struct {
	Sites        []SiteOutcome
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedSites  []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}

// Records concatenates the records of every successful site in site order.
func (r *ScraperResult) Records() []GpuRecord {
	if r == nil {
		return nil
	}
	total := 0
	for _, site := range r.Sites {
		if site.Result != nil {
			total += len(site.Result.Records)
		}
	}
	out := make([]GpuRecord, 0, total)
	for _, site := range r.Sites {
		if site.Result != nil {
			out = append(out, site.Result.Records...)
		}
	}
	return out
}
