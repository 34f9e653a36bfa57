package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-gpus/models"
)

var errWriterClosed = errors.New("pipeline: writer closed")

// NewWriter builds the writer for an output format: csv, json (JSON Lines) or dual.
// dual writes the CSV to path and the JSON Lines next to it with a .jsonl extension.
func NewWriter(format, path string) (OutputWriter, error) {
	switch format {
	case "csv":
		w, err := NewCSVWriter(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "json":
		w, err := NewJSONWriter(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "dual":
		csvWriter, err := NewCSVWriter(path)
		if err != nil {
			return nil, err
		}
		jsonWriter, err := NewJSONWriter(strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl")
		if err != nil {
			csvWriter.Close()
			return nil, err
		}
		return NewMultiWriter(csvWriter, jsonWriter), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// fileOutput is a buffered output file that remembers how many bytes and records
// went through it, so the result on disk can be checked against that.
type fileOutput struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	buf     *bufio.Writer
	written int64
	records int
	closed  bool
}

func createFileOutput(path string) (*fileOutput, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	o := &fileOutput{path: path, file: f}
	o.buf = bufio.NewWriter(countingWriter{w: f, n: &o.written})
	return o, nil
}

// append runs encode against the buffer and flushes it as one unit of n records.
func (o *fileOutput) append(n int, encode func(w io.Writer) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errWriterClosed
	}
	if err := encode(o.buf); err != nil {
		return err
	}
	if err := o.buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", o.path, err)
	}
	o.records += n
	return nil
}

func (o *fileOutput) close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	flushErr := o.buf.Flush()
	closeErr := o.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", o.path, flushErr)
	}
	return closeErr
}

// validate checks that everything written is on disk. A file that received
// nothing but its preamble is valid: a run may legitimately produce zero records.
func (o *fileOutput) validate() error {
	o.mu.Lock()
	written, records := o.written, o.records
	o.mu.Unlock()

	info, err := os.Stat(o.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", o.path, err)
	}
	if info.Size() < written {
		return fmt.Errorf("%s holds %d bytes, %d written for %d records", o.path, info.Size(), written, records)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n *int64
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}

// CSVWriter writes records as CSV rows under a models.Columns header.
type CSVWriter struct {
	out *fileOutput
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := createFileOutput(filename)
	if err != nil {
		return nil, err
	}
	if err := out.append(0, func(w io.Writer) error {
		return writeCSV(w, [][]string{models.Columns})
	}); err != nil {
		out.close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVWriter{out: out}, nil
}

// Write appends one row per record.
func (cw *CSVWriter) Write(records []models.GpuRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, csvRow(r))
	}
	if err := cw.out.append(len(records), func(w io.Writer) error {
		return writeCSV(w, rows)
	}); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	return cw.out.close()
}

// Validate checks the file on disk holds the header and every row written.
func (cw *CSVWriter) Validate() error {
	return cw.out.validate()
}

// csvRow renders r in models.Columns order.
func csvRow(r models.GpuRecord) []string {
	return []string{
		r.StoreName,
		r.GpuModel,
		r.GpuName,
		strconv.FormatInt(r.FetchTimestamp, 10),
		r.GpuPrice,
		strconv.FormatBool(r.InStock),
		r.URL,
	}
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	out *fileOutput
}

// NewJSONWriter creates filename. Nothing is written until the first record.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := createFileOutput(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{out: out}, nil
}

// Write appends one JSON object per record.
func (jw *JSONWriter) Write(records []models.GpuRecord) error {
	return jw.out.append(len(records), func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		for _, r := range records {
			if err := encoder.Encode(r); err != nil {
				return fmt.Errorf("encode json record %s: %w", r.URL, err)
			}
		}
		return nil
	})
}

// Close flushes and closes the file.
func (jw *JSONWriter) Close() error {
	return jw.out.close()
}

// Validate checks the file on disk holds every line written. An empty file is
// valid when no records were written.
func (jw *JSONWriter) Validate() error {
	return jw.out.validate()
}

// MultiWriter sends every batch to each of its writers in turn.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter fans writes out to writers.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (mw *MultiWriter) Write(records []models.GpuRecord) error {
	for i, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer, even after a failure, and joins the errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		errs = append(errs, w.Validate())
	}
	return errors.Join(errs...)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
