package theme

import (
	"archive/zip"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestFromCSS(t *testing.T) {
	src := `/* @theme sample */
/*
@author someone
@size 16:9 1280px 720px
@size 4:3 960px 720px
*/
@import "base";
@import-theme 'x\'y';
@import url("foo.css");
section { width: 960px; height: 720px; }
:root { width: 10in; }
@media print { section { height: 1px; } }
`
	th, err := FromCSS(src, Options{MetaType: map[string]MetaType{"size": MetaArray}})
	if err != nil {
		t.Fatalf("FromCSS() error = %v", err)
	}
	if th.Name() != "sample" {
		t.Errorf("Name() = %q", th.Name())
	}
	if th.Meta("author") != "someone" {
		t.Errorf("Meta(author) = %q", th.Meta("author"))
	}
	if got := th.MetaValues("size"); !reflect.DeepEqual(got, []string{"16:9 1280px 720px", "4:3 960px 720px"}) {
		t.Errorf("MetaValues(size) = %v", got)
	}
	if th.Meta("size") != "4:3 960px 720px" {
		t.Errorf("Meta(size) = %q", th.Meta("size"))
	}
	if th.Width() != "10in" || th.Height() != "720px" {
		t.Errorf("size = %s x %s, want 10in x 720px", th.Width(), th.Height())
	}
	if th.WidthPixel() != 960 || th.HeightPixel() != 720 {
		t.Errorf("pixels = %v x %v", th.WidthPixel(), th.HeightPixel())
	}
	want := []ImportRule{{Name: "base"}, {Name: "x'y", Theme: true}}
	if got := th.ImportRules(); !reflect.DeepEqual(got, want) {
		t.Errorf("ImportRules() = %v, want %v", got, want)
	}
}

func TestFromCSS_BlockHeader(t *testing.T) {
	src := `/*!
 * @theme boxed
 * @author someone else
 *
 * not a meta line
 */
section { width: 100px; height: 50px; }
`
	th, err := FromCSS(src, Options{})
	if err != nil {
		t.Fatalf("FromCSS() error = %v", err)
	}
	if th.Name() != "boxed" {
		t.Errorf("Name() = %q", th.Name())
	}
	if th.Meta("author") != "someone else" {
		t.Errorf("Meta(author) = %q", th.Meta("author"))
	}
	if th.WidthPixel() != 100 || th.HeightPixel() != 50 {
		t.Errorf("pixels = %v x %v", th.WidthPixel(), th.HeightPixel())
	}
}

func TestFromCSS_Errors(t *testing.T) {
	if _, err := FromCSS("section { width: 1px; }", Options{}); !errors.Is(err, ErrMissingName) {
		t.Errorf("missing name error = %v", err)
	}
	if _, err := FromCSS("/* @theme x */ section {", Options{}); err == nil {
		t.Error("expected parse error")
	}
	th, err := FromCSS("h1 { color: red; }", Options{CSSOnly: true})
	if err != nil || th.Name() != "" {
		t.Errorf("CSSOnly theme = %v, %v", th, err)
	}
}

func TestToPixels(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1280px", 1280, true},
		{"1in", 96, true},
		{"72pt", 96, true},
		{"1pc", 16, true},
		{"2.54cm", 96, true},
		{"25.4MM", 96, true},
		{"101.6q", 96, true},
		{"10em", 0, false},
		{"auto", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ToPixels(tt.in)
		if ok != tt.ok || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ToPixels(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func newTestSet(t *testing.T, themes ...string) *Set {
	t.Helper()
	s := NewSet(zaptest.NewLogger(t))
	for _, c := range themes {
		if _, err := s.Add(c); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	return s
}

func TestSet_Registry(t *testing.T) {
	s := newTestSet(t,
		"/* @theme theme10 */",
		"/* @theme theme2 */",
		"/* @theme a */",
	)

	if got, want := s.Names(), []string{"a", "theme2", "theme10"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if _, err := s.Add("/* @theme a */"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate Add() error = %v", err)
	}
	if _, err := s.Add("h1{}"); !errors.Is(err, ErrMissingName) {
		t.Errorf("nameless Add() error = %v", err)
	}
	if err := s.AddTheme(nil); err == nil {
		t.Error("AddTheme(nil) expected error")
	}
	if s.Size() != 3 || !s.Has("theme2") {
		t.Errorf("Size() = %d", s.Size())
	}

	if err := s.SetDefault("missing"); !errors.Is(err, ErrUnknownTheme) {
		t.Errorf("SetDefault(missing) error = %v", err)
	}
	if err := s.SetDefault("a"); err != nil {
		t.Fatal(err)
	}
	if s.GetOrDefault("unknown").Name() != "a" {
		t.Error("GetOrDefault must fall back to default theme")
	}
	if !s.Delete("a") || s.Default() != nil {
		t.Error("deleting default theme must reset default")
	}
	if s.GetOrDefault("unknown") != Scaffold() {
		t.Error("GetOrDefault must fall back to scaffold")
	}

	s.Clear()
	if s.Size() != 0 {
		t.Errorf("Size() after Clear() = %d", s.Size())
	}
}

func TestSet_Prop(t *testing.T) {
	s := newTestSet(t,
		"/* @theme a */ section { width: 1000px; }",
		"/* @theme b */ section { width: 800px; }",
		"/* @theme c */ @import 'a'; @import 'b';",
		"/* @theme loop1 */ @import 'loop2';",
		"/* @theme loop2 */ @import 'loop1';",
	)
	if err := s.SetDefault("a"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		prop Prop
		want string
	}{
		{"c", PropWidth, "800px"},
		{"c", PropHeight, "720px"},
		{"unknown", PropWidth, "1000px"},
		{"loop1", PropWidth, "1000px"},
	}
	for _, tt := range tests {
		if got := s.Prop(tt.name, tt.prop); got != tt.want {
			t.Errorf("Prop(%s, %s) = %q, want %q", tt.name, tt.prop, got, tt.want)
		}
	}

	w, h := s.PixelSize("b")
	if w != 800 || h != 720 {
		t.Errorf("PixelSize(b) = %v x %v", w, h)
	}
}

func TestSet_LoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"one.css":   "/* @theme one */",
		"two.CSS":   "/* @theme two */",
		"bad.css":   "h1 { color: red; }",
		"notes.txt": "/* @theme three */",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	s := newTestSet(t)
	err := s.LoadDir(dir)
	if !errors.Is(err, ErrMissingName) {
		t.Errorf("LoadDir() error = %v, want missing name", err)
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("Names() = %v", got)
	}

	if err := s.LoadDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("LoadDir(missing) expected error")
	}
}

func TestSet_LoadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range map[string]string{
		"themes/gaia.css": "/* @theme gaia */",
		"themes/dup.css":  "/* @theme gaia */",
		"readme.md":       "# themes",
	} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s := newTestSet(t)
	if err := s.LoadArchive(path); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("LoadArchive() error = %v, want duplicate", err)
	}
	if !s.Has("gaia") || s.Size() != 1 {
		t.Errorf("Names() = %v", s.Names())
	}
}

func TestBuiltins(t *testing.T) {
	if Scaffold().Name() != ScaffoldName || Scaffold().Width() != "1280px" {
		t.Errorf("scaffold = %q %q", Scaffold().Name(), Scaffold().Width())
	}
	def, err := NewDefault(map[string]MetaType{"size": MetaArray})
	if err != nil {
		t.Fatal(err)
	}
	if def.Name() != DefaultName || len(def.MetaValues("size")) != 2 {
		t.Errorf("default theme = %q, sizes %v", def.Name(), def.MetaValues("size"))
	}
}
