package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open report: %v", err)
	}
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReport_Close(t *testing.T) {
	dir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	src := filepath.Join(dir, "deck.md")
	if err := os.WriteFile(src, []byte("# Slide\n"), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	r.Store("source/deck.md", src)
	r.Store("missing.log", filepath.Join(dir, "absent.log"))
	r.StoreData("tokens.txt", []byte("first"))
	r.StoreData("tokens.txt", []byte("second"))

	if got := r.Name(); got != conf.Destination {
		t.Errorf("Name() = %q, want %q", got, conf.Destination)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readArchive(t, conf.Destination)
	if entries["source/deck.md"] != "# Slide\n" {
		t.Errorf("source entry = %q", entries["source/deck.md"])
	}
	if _, ok := entries["missing.log"]; ok {
		t.Error("absent file should be skipped")
	}
	if entries["tokens.txt"] != "first" {
		t.Errorf("tokens.txt = %q, want first", entries["tokens.txt"])
	}

	versioned := 0
	for name, data := range entries {
		if strings.HasPrefix(name, "tokens.txt-") && data == "second" {
			versioned++
		}
	}
	if versioned != 1 {
		t.Errorf("expected single versioned tokens entry, got %d", versioned)
	}

	manifest := entries["MANIFEST"]
	for _, name := range []string{"source/deck.md", "missing.log", "tokens.txt"} {
		if !strings.Contains(manifest, "\t"+name+"\t") {
			t.Errorf("MANIFEST does not list %s:\n%s", name, manifest)
		}
	}
}

func TestReport_StorePanicsOnOverwrite(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.Store("a", "/tmp/one")
	r.Store("a", "/tmp/one")

	defer func() {
		if recover() == nil {
			t.Error("expected panic when overwriting stored file")
		}
	}()
	r.Store("a", "/tmp/two")
}

func TestReport_Names(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.StoreData("b", nil)
	r.StoreData("a", nil)
	if got := r.Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	r.Store("x", "y")
	r.StoreData("x", nil)
	if r.Name() != "" || r.Names() != nil {
		t.Error("nil report should be empty")
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
