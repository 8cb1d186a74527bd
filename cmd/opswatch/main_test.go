package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/opswatchhq/engine/internal/alert"
	"github.com/opswatchhq/engine/internal/config"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverUploads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.log"))
	writeFile(t, filepath.Join(dir, "audit.log"))
	writeFile(t, filepath.Join(dir, "notes.txt"))
	writeFile(t, filepath.Join(dir, "skip.bin"))
	if err := os.Mkdir(filepath.Join(dir, "archive.log"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := discoverUploads([]string{
		filepath.Join(dir, "*.log"),
		filepath.Join(dir, "*.txt"),
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	want := []string{
		filepath.Join(dir, "app.log"),
		filepath.Join(dir, "audit.log"),
		filepath.Join(dir, "notes.txt"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for i, path := range want {
		if files[i] != path {
			t.Fatalf("expected %s at %d, got %s", path, i, files[i])
		}
	}
}

func TestDiscoverUploadsDeduplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path)

	files, err := discoverUploads([]string{path, filepath.Join(dir, "*.log")})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %v", files)
	}
}

func TestDiscoverUploadsNoMatches(t *testing.T) {
	dir := t.TempDir()
	files, err := discoverUploads([]string{filepath.Join(dir, "*.log")})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}

func TestBuildSinkDefaultsToLogger(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	sink, err := buildSink(config.AlertConfig{}, logger)
	if err != nil {
		t.Fatalf("build sink: %v", err)
	}
	if _, ok := sink.(*alert.LogSink); !ok {
		t.Fatalf("expected log sink, got %T", sink)
	}
}

func TestBuildSinkRejectsBadURL(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	if _, err := buildSink(config.AlertConfig{URLs: []string{"notaservice://nope"}}, logger); err == nil {
		t.Fatalf("expected error for unknown service URL")
	}
}
