package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"landscout/internal/models"
)

func TestReadURLList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# candidates\nhttps://land.example/1\n\n  https://land.example/2  \n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}

	urls, err := readURLList(path)
	if err != nil {
		t.Fatalf("readURLList failed: %v", err)
	}

	if len(urls) != 2 || urls[1] != "https://land.example/2" {
		t.Errorf("Expected 2 trimmed URLs, got %v", urls)
	}
}

func TestPrintResult(t *testing.T) {
	acres := 40.0

	var buf bytes.Buffer

	printResult(&buf, models.VerificationResult{
		OK:    true,
		URL:   "https://land.example/1",
		Title: "40 acres",
		Acres: &acres,
	})
	printResult(&buf, models.VerificationResult{
		URL:    "https://land.example/2",
		Reason: models.ReasonDead,
		Status: 404,
	})

	out := buf.String()

	if !strings.Contains(out, "✅ https://land.example/1") || !strings.Contains(out, "acres 40.00") {
		t.Errorf("Unexpected ok line: %s", out)
	}

	if !strings.Contains(out, "❌ https://land.example/2  dead (status 404)") {
		t.Errorf("Unexpected failure line: %s", out)
	}
}
