package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

type entry struct {
	name    string
	content string
}

func createZip(t *testing.T, entries []entry) string {
	t.Helper()

	zipPath := filepath.Join(t.TempDir(), "themes.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	for _, e := range entries {
		if e.content == "" && e.name[len(e.name)-1] == '/' {
			hdr := &zip.FileHeader{Name: e.name}
			hdr.SetMode(os.ModeDir | 0755)
			if _, err := w.CreateHeader(hdr); err != nil {
				t.Fatalf("Failed to create directory %s: %v", e.name, err)
			}
			continue
		}
		fw, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", e.name, err)
		}
		if _, err := fw.Write([]byte(e.content)); err != nil {
			t.Fatalf("Failed to write content for %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return zipPath
}

func TestWalk(t *testing.T) {
	zipPath := createZip(t, []entry{
		{name: "themes/"},
		{name: "themes/gaia.css", content: "/* @theme gaia */"},
		{name: "themes/uncover.CSS", content: "/* @theme uncover */"},
		{name: "themes/readme.txt", content: "readme"},
		{name: "other/extra.css", content: "/* @theme extra */"},
	})

	tests := []struct {
		name  string
		match MatchFunc
		want  []string
	}{
		{name: "everything", match: nil, want: []string{"themes/gaia.css", "themes/uncover.CSS", "themes/readme.txt", "other/extra.css"}},
		{name: "by prefix", match: WithPrefix("themes/"), want: []string{"themes/gaia.css", "themes/uncover.CSS", "themes/readme.txt"}},
		{name: "by extension", match: WithExt(".css"), want: []string{"themes/gaia.css", "themes/uncover.CSS", "other/extra.css"}},
		{name: "no match", match: WithPrefix("nonexistent/"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var visited []string
			err := Walk(zipPath, tt.match, func(archive string, file *zip.File) error {
				if archive != zipPath {
					t.Errorf("archive = %s, want %s", archive, zipPath)
				}
				visited = append(visited, file.Name)
				return nil
			})
			if err != nil {
				t.Fatalf("Walk() error = %v", err)
			}
			if !slices.Equal(visited, tt.want) {
				t.Errorf("visited = %v, want %v", visited, tt.want)
			}
		})
	}
}

func TestWalk_EarlyTermination(t *testing.T) {
	zipPath := createZip(t, []entry{
		{name: "a.css", content: "a"},
		{name: "b.css", content: "b"},
		{name: "c.css", content: "c"},
	})

	var visited int
	stopErr := errors.New("stop walking")
	err := Walk(zipPath, nil, func(string, *zip.File) error {
		visited++
		if visited == 2 {
			return stopErr
		}
		return nil
	})
	if !errors.Is(err, stopErr) {
		t.Errorf("Walk() error = %v, want %v", err, stopErr)
	}
	if visited != 2 {
		t.Errorf("visited %d files, want 2", visited)
	}
}

func TestWalk_InvalidArchive(t *testing.T) {
	t.Run("nonexistent file", func(t *testing.T) {
		if err := Walk("/nonexistent/file.zip", nil, func(string, *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for nonexistent file")
		}
	})

	t.Run("invalid zip file", func(t *testing.T) {
		invalidZip := filepath.Join(t.TempDir(), "invalid.zip")
		if err := os.WriteFile(invalidZip, []byte("not a zip file"), 0644); err != nil {
			t.Fatalf("Failed to create invalid zip: %v", err)
		}
		if err := Walk(invalidZip, nil, func(string, *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for invalid zip file")
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		zipPath := createZip(t, []entry{{name: "../evil.css", content: "x"}})
		if err := Walk(zipPath, nil, func(string, *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for unsafe entry path")
		}
	})
}

func TestReadFile(t *testing.T) {
	zipPath := createZip(t, []entry{{name: "gaia.css", content: "/* @theme gaia */"}})

	err := Walk(zipPath, WithExt(".css"), func(_ string, file *zip.File) error {
		data, err := ReadFile(file)
		if err != nil {
			return err
		}
		if string(data) != "/* @theme gaia */" {
			t.Errorf("content = %q", data)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Walk() error = %v", err)
	}
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"themes/a.css", true},
		{"a..b.css", true},
		{"/etc/passwd", false},
		{`\windows\file`, false},
		{"themes/../../a.css", false},
	}
	for _, tt := range tests {
		if got := isSafePath(tt.name); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAll(t *testing.T) {
	m := All(WithPrefix("decks/"), WithExt(".md"), nil)
	tests := []struct {
		name string
		want bool
	}{
		{"decks/intro.md", true},
		{"decks/intro.MD", true},
		{"decks/intro.txt", false},
		{"other/intro.md", false},
	}
	for _, tt := range tests {
		if got := m(tt.name); got != tt.want {
			t.Errorf("All()(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsArchive(t *testing.T) {
	zipPath := createZip(t, []entry{{name: "a.css", content: "a"}})
	if ok, err := IsArchive(zipPath); err != nil || !ok {
		t.Errorf("IsArchive(zip) = %v, %v", ok, err)
	}

	plain := filepath.Join(t.TempDir(), "deck.zip")
	if err := os.WriteFile(plain, []byte("# not an archive"), 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := IsArchive(plain); err != nil || ok {
		t.Errorf("IsArchive(plain) = %v, %v", ok, err)
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := IsArchive(empty); err != nil || ok {
		t.Errorf("IsArchive(empty) = %v, %v", ok, err)
	}

	if _, err := IsArchive(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
