package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"landscout/internal/models"
)

// JSONL appends one JSON document per listing to a file.
type JSONL struct {
	file *os.File
	enc  *json.Encoder
	path string
	mu   sync.Mutex
}

// NewJSONL opens path for appending, creating parent directories.
func NewJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)

	return &JSONL{file: f, enc: enc, path: path}, nil
}

// Emit writes l as one line.
func (j *JSONL) Emit(_ context.Context, l *models.Listing) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return ErrClosed
	}

	if err := j.enc.Encode(l); err != nil {
		return fmt.Errorf("failed to write listing: %w", err)
	}

	return nil
}

// Path returns the output file path.
func (j *JSONL) Path() string {
	return j.path
}

// Close flushes and closes the file.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil

	return err
}
