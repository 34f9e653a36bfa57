package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper run configuration shared by every site.
type Config struct {
	SitesFile          string
	MaxPages           int
	Parallelism        int
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	OutputFile         string
	OutputFormat       string // csv, json, or dual
	UserAgent          string
	Proxies            []string
	ProxyRotateEvery   int
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	MetricsAddr        string
	Verbose            bool
	RespectRobotsTxt   bool
}

// DefaultConfig returns conservative defaults for the store catalogues.
func DefaultConfig() *Config {
	return &Config{
		SitesFile:          "",
		MaxPages:           20,
		Parallelism:        4,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            15 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		OutputFile:         "output/gpus.csv",
		OutputFormat:       "csv",
		UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_10_1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/39.0.2171.95 Safari/537.36",
		ProxyRotateEvery:   1,
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      100000,
		MetricsAddr:        "",
		Verbose:            false,
		RespectRobotsTxt:   false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	for _, raw := range c.Proxies {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid proxy URL %q: %w", raw, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("proxy URL %q must include scheme and host", raw)
		}
	}
	if len(c.Proxies) > 0 && c.ProxyRotateEvery <= 0 {
		return fmt.Errorf("proxy rotate every must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
