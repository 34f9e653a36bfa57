// Package pipeline validates, de-duplicates and writes GPU records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
	"github.com/aluiziolira/go-scrape-gpus/models"
	"github.com/aluiziolira/go-scrape-gpus/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers do not drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

var drainTimeout = 30 * time.Second

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []models.GpuRecord) error
	Close() error
	Validate() error
}

// Pipeline coordinates validation, de-duplication, and output writing.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	recordCh  chan models.GpuRecord
	batchSize int

	wg sync.WaitGroup

	seen *lru.Cache[string, struct{}]

	metrics *metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	bufferSize := cfg.PipelineBufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	dedupeSize := cfg.DedupeMaxSize
	if dedupeSize <= 0 {
		dedupeSize = 100000
	}
	// only fails for a non-positive size
	seen, _ := lru.New[string, struct{}](dedupeSize)

	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		recordCh:  make(chan models.GpuRecord, bufferSize),
		batchSize: batchSize,
		seen:      seen,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues records for downstream processing.
func (p *Pipeline) Process(records ...models.GpuRecord) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, record := range records {
		if err := p.enqueue(record); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting records and waits up to drainTimeout for workers to flush.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return p.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrPipelineCloseTimeout, drainTimeout)
	}
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				processed := metrics["processed_records"].(int64)
				validation := metrics["validation_errors"].(map[string]int)
				slog.Info("pipeline progress",
					slog.Int64("processed", processed),
					slog.Int("validation_kinds", len(validation)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]models.GpuRecord, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for record := range p.recordCh {
		if !p.accept(record) {
			continue
		}
		batch = append(batch, record)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// accept reports whether record should be written. Records are never modified.
func (p *Pipeline) accept(record models.GpuRecord) bool {
	if err := parser.ValidateRecord(&record); err != nil {
		p.metrics.addValidation("invalid_record")
		slog.Debug("record rejected", slog.String("url", record.URL), slog.Any("error", err))
		return false
	}

	if found, _ := p.seen.ContainsOrAdd(record.URL, struct{}{}); found {
		p.metrics.addValidation("duplicate_url")
		return false
	}

	p.metrics.incrementProcessed()
	return true
}

func (p *Pipeline) enqueue(record models.GpuRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	var done <-chan struct{}
	if p.ctx != nil {
		done = p.ctx.Done()
	}

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-done:
		return p.ctx.Err()
	case p.recordCh <- record:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() *metrics {
	return &metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
