package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-gpus/config"
	"github.com/aluiziolira/go-scrape-gpus/models"
)

func sampleRecords() []models.GpuRecord {
	return []models.GpuRecord{
		{
			StoreName:      "OnlineTrade",
			GpuModel:       "GeForce RTX 4060",
			GpuName:        "Palit GeForce RTX 4060 Dual",
			FetchTimestamp: 1762261753,
			GpuPrice:       "32990",
			InStock:        true,
			URL:            "https://www.onlinetrade.ru/catalogue/videokarty-c338/palit-1.html",
		},
		{
			StoreName:      "Regard",
			FetchTimestamp: 1762261754,
			URL:            "https://regard.ru/product/2",
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func readJSONL(t *testing.T, path string) []models.GpuRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var decoded []models.GpuRecord
	for scanner.Scan() {
		var rec models.GpuRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		decoded = append(decoded, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	return decoded
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpus.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "store_name,gpu_model,gpu_name,fetch_ts,gpu_price,in_stock,url" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	want := []string{"OnlineTrade", "GeForce RTX 4060", "Palit GeForce RTX 4060 Dual", "1762261753", "32990", "true",
		"https://www.onlinetrade.ru/catalogue/videokarty-c338/palit-1.html"}
	if strings.Join(rows[1], "|") != strings.Join(want, "|") {
		t.Fatalf("row = %v, want %v", rows[1], want)
	}
	if rows[2][1] != "" || rows[2][4] != "" || rows[2][5] != "false" {
		t.Fatalf("degraded row = %v", rows[2])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpus.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	decoded := readJSONL(t, path)
	if len(decoded) != 2 {
		t.Fatalf("json lines=%d, want 2", len(decoded))
	}
	if decoded[0] != sampleRecords()[0] {
		t.Fatalf("decoded = %+v", decoded[0])
	}
}

func TestWritersAcceptZeroRecords(t *testing.T) {
	for _, format := range []string{"csv", "json", "dual"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gpus.csv")
			writer, err := NewWriter(format, path)
			if err != nil {
				t.Fatalf("create %s writer: %v", format, err)
			}

			// a run where every record was rejected never reaches the writer
			p := NewPipeline(context.Background(), writer, config.DefaultConfig())
			p.Start(1)
			invalid := sampleRecords()[0]
			invalid.FetchTimestamp = 0
			if err := p.Process(invalid); err != nil {
				t.Fatalf("process: %v", err)
			}
			if err := p.Close(); err != nil {
				t.Fatalf("close pipeline: %v", err)
			}

			if err := writer.Validate(); err != nil {
				t.Fatalf("validate empty %s output: %v", format, err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("close writer: %v", err)
			}
		})
	}
}

func TestValidateDetectsTruncatedOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpus.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := os.Truncate(path, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected validation error for truncated output")
	}
}

func TestWriterRejectsWritesAfterClose(t *testing.T) {
	writer, err := NewCSVWriter(filepath.Join(t.TempDir(), "gpus.csv"))
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Write(sampleRecords()); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v, want errWriterClosed", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestNewWriterDualFansOut(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "gpus.csv")

	writer, err := NewWriter("dual", csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if _, ok := writer.(*MultiWriter); !ok {
		t.Fatalf("dual format returned %T", writer)
	}

	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if rows := readCSV(t, csvPath); len(rows) != 3 {
		t.Fatalf("csv rows=%d, want 3", len(rows))
	}
	if lines := readJSONL(t, filepath.Join(dir, "out", "gpus.jsonl")); len(lines) != 2 {
		t.Fatalf("json lines=%d, want 2", len(lines))
	}
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "gpus.xml")); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

type failingOutput struct {
	closed bool
}

func (f *failingOutput) Write([]models.GpuRecord) error { return errors.New("disk full") }
func (f *failingOutput) Close() error                   { f.closed = true; return nil }
func (f *failingOutput) Validate() error                { return errors.New("missing") }

func TestMultiWriterPropagatesFailures(t *testing.T) {
	good := &mockWriter{}
	bad := &failingOutput{}
	mw := NewMultiWriter(good, bad)

	if err := mw.Write(sampleRecords()); err == nil {
		t.Fatalf("expected write error")
	}
	if good.totalWritten() != 2 {
		t.Fatalf("first writer should still receive the batch")
	}
	if err := mw.Validate(); err == nil {
		t.Fatalf("expected validate error")
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !good.closed || !bad.closed {
		t.Fatalf("every writer must be closed")
	}
}
