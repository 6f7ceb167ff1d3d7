package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/newsdesk/internal/types"
)

// Exporter writes extracted teasers to a file.
type Exporter interface {
	Name() string
	Write(teasers []types.Teaser) error
	Close() error
}

var teaserHeaders = []string{"title", "url", "image", "content", "date", "category"}

func createOutput(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

// --- JSON ---

// JSONExporter buffers teasers and writes one indented array on Close.
type JSONExporter struct {
	path    string
	teasers []types.Teaser
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewJSONExporter(outputPath string, logger *slog.Logger) (*JSONExporter, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JSONExporter{
		path:    outputPath,
		teasers: []types.Teaser{},
		logger:  logger.With("component", "json_export"),
	}, nil
}

func (e *JSONExporter) Name() string { return "json" }

func (e *JSONExporter) Write(teasers []types.Teaser) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teasers = append(e.teasers, teasers...)
	return nil
}

func (e *JSONExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e.teasers); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	e.logger.Info("JSON written", "path", e.path, "teasers", len(e.teasers))
	return nil
}

// --- JSONL ---

// JSONLExporter streams one teaser per line.
type JSONLExporter struct {
	path   string
	file   io.WriteCloser
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

func NewJSONLExporter(outputPath string, logger *slog.Logger) (*JSONLExporter, error) {
	f, err := createOutput(outputPath)
	if err != nil {
		return nil, err
	}
	return &JSONLExporter{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_export"),
	}, nil
}

func (e *JSONLExporter) Name() string { return "jsonl" }

func (e *JSONLExporter) Write(teasers []types.Teaser) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range teasers {
		if err := e.enc.Encode(t); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
		e.count++
	}
	return nil
}

func (e *JSONLExporter) Close() error {
	e.logger.Info("JSONL written", "path", e.path, "teasers", e.count)
	return e.file.Close()
}

// --- CSV ---

// CSVExporter writes a fixed header row followed by one row per teaser.
type CSVExporter struct {
	path          string
	file          io.WriteCloser
	writer        *csv.Writer
	headerWritten bool
	mu            sync.Mutex
	count         int
	logger        *slog.Logger
}

func NewCSVExporter(outputPath string, logger *slog.Logger) (*CSVExporter, error) {
	f, err := createOutput(outputPath)
	if err != nil {
		return nil, err
	}
	return &CSVExporter{
		path:   outputPath,
		file:   f,
		writer: csv.NewWriter(f),
		logger: logger.With("component", "csv_export"),
	}, nil
}

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Write(teasers []types.Teaser) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.headerWritten {
		if err := e.writer.Write(teaserHeaders); err != nil {
			return fmt.Errorf("write CSV header: %w", err)
		}
		e.headerWritten = true
	}
	for _, t := range teasers {
		row := []string{t.Title, t.URL, t.Image, t.Content, t.Date, t.Category}
		if err := e.writer.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
		e.count++
	}
	e.writer.Flush()
	return e.writer.Error()
}

func (e *CSVExporter) Close() error {
	e.logger.Info("CSV written", "path", e.path, "teasers", e.count)
	e.writer.Flush()
	return e.file.Close()
}

// NewExporter creates a file exporter by format inside outputDir.
func NewExporter(format, outputDir string, logger *slog.Logger) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(filepath.Join(outputDir, "teasers.json"), logger)
	case "jsonl":
		return NewJSONLExporter(filepath.Join(outputDir, "teasers.jsonl"), logger)
	case "csv":
		return NewCSVExporter(filepath.Join(outputDir, "teasers.csv"), logger)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}
