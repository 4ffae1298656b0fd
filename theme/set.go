package theme

import (
	"archive/zip"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mdeck/archive"
)

var (
	// ErrDuplicateName is returned when theme with the same name is already
	// registered.
	ErrDuplicateName = errors.New("theme is already registered")
	// ErrUnknownTheme is returned when referenced theme is not registered.
	ErrUnknownTheme = errors.New("unknown theme")
)

// Prop is a theme property which could be inherited.
type Prop int

const (
	PropWidth Prop = iota
	PropHeight
)

func (p Prop) String() string {
	switch p {
	case PropWidth:
		return "width"
	case PropHeight:
		return "height"
	}
	return fmt.Sprintf("prop(%d)", int(p))
}

func (p Prop) of(t *Theme) string {
	switch p {
	case PropWidth:
		return t.Width()
	case PropHeight:
		return t.Height()
	}
	return ""
}

// Set is a registry of themes. Lookups and packing could be done
// concurrently, modifications are serialized.
type Set struct {
	mu       sync.RWMutex
	themes   map[string]*Theme
	def      *Theme
	metaType map[string]MetaType
	log      *zap.Logger
}

// NewSet creates empty theme set. "size" meta is array typed by default.
func NewSet(log *zap.Logger) *Set {
	if log == nil {
		log = zap.NewNop()
	}
	return &Set{
		themes:   make(map[string]*Theme),
		metaType: map[string]MetaType{"size": MetaArray},
		log:      log.Named("theme-set"),
	}
}

// SetMetaType declares type of meta key for themes added afterwards.
func (s *Set) SetMetaType(key string, typ MetaType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaType[key] = typ
}

// MetaTypes returns copy of declared meta types.
func (s *Set) MetaTypes() map[string]MetaType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.metaType)
}

// Add parses CSS and registers resulting theme.
func (s *Set) Add(data string) (*Theme, error) {
	t, err := FromCSS(data, Options{MetaType: s.MetaTypes()})
	if err != nil {
		return nil, err
	}
	if err := s.AddTheme(t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddTheme registers theme instance.
func (s *Set) AddTheme(t *Theme) error {
	if t == nil {
		return errors.New("nil theme")
	}
	if t.Name() == "" {
		return ErrMissingName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.themes[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, t.Name())
	}
	s.themes[t.Name()] = t
	s.log.Debug("Theme registered", zap.String("name", t.Name()), zap.Int("imports", len(t.importRules)))
	return nil
}

// Get returns registered theme.
func (s *Set) Get(name string) (*Theme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.themes[name]
	return t, ok
}

// GetOrDefault returns registered theme, default theme when name is
// unknown or scaffold when there is no default.
func (s *Set) GetOrDefault(name string) *Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOrDefault(name)
}

func (s *Set) getOrDefault(name string) *Theme {
	if t, ok := s.themes[name]; ok {
		return t
	}
	if s.def != nil {
		return s.def
	}
	return Scaffold()
}

// Has reports if theme is registered.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Delete removes theme, removing default theme resets default.
func (s *Set) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.themes[name]
	if !ok {
		return false
	}
	delete(s.themes, name)
	if s.def == t {
		s.def = nil
	}
	return true
}

// Clear removes all themes and default.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.themes)
	s.def = nil
}

// Size returns number of registered themes.
func (s *Set) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.themes)
}

// Names returns registered theme names in natural order.
func (s *Set) Names() []string {
	s.mu.RLock()
	names := slices.Collect(maps.Keys(s.themes))
	s.mu.RUnlock()

	slices.SortFunc(names, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return strings.Compare(a, b)
	})
	return names
}

// SetDefault makes registered theme default, empty name resets it.
func (s *Set) SetDefault(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		s.def = nil
		return nil
	}
	t, ok := s.themes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTheme, name)
	}
	s.def = t
	return nil
}

// Default returns default theme or nil.
func (s *Set) Default() *Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def
}

// Prop resolves theme property. Lookup order: the theme itself, themes it
// imports (later imports first), default theme, scaffold.
func (s *Set) Prop(name string, p Prop) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prop(s.getOrDefault(name), p)
}

func (s *Set) prop(t *Theme, p Prop) string {
	if v := s.importedProp(t, p, map[string]bool{}); v != "" {
		return v
	}
	if s.def != nil {
		if v := p.of(s.def); v != "" {
			return v
		}
	}
	return p.of(Scaffold())
}

func (s *Set) importedProp(t *Theme, p Prop, seen map[string]bool) string {
	if seen[t.Name()] {
		return ""
	}
	seen[t.Name()] = true

	if v := p.of(t); v != "" {
		return v
	}
	for _, r := range slices.Backward(t.importRules) {
		imported, ok := s.themes[r.Name]
		if !ok {
			continue
		}
		if v := s.importedProp(imported, p, seen); v != "" {
			return v
		}
	}
	return ""
}

// MetaOf returns meta value of theme (or default when unknown).
func (s *Set) MetaOf(name, key string) string {
	return s.GetOrDefault(name).Meta(key)
}

// PixelSize returns resolved slide size in pixels.
func (s *Set) PixelSize(name string) (width, height float64) {
	width, _ = ToPixels(s.Prop(name, PropWidth))
	height, _ = ToPixels(s.Prop(name, PropHeight))
	return width, height
}

// LoadDir registers every *.css file from directory. Files are processed
// in name order, failures are collected and processing continues.
func (s *Set) LoadDir(dir string) (err error) {
	entries, rerr := os.ReadDir(dir)
	if rerr != nil {
		return fmt.Errorf("unable to read themes directory: %w", rerr)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".css") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			err = multierr.Append(err, rerr)
			continue
		}
		if _, aerr := s.Add(string(data)); aerr != nil {
			err = multierr.Append(err, fmt.Errorf("theme %s: %w", path, aerr))
			continue
		}
		s.log.Debug("Theme loaded", zap.String("file", path))
	}
	return err
}

// LoadArchive registers every *.css entry of zip archive, failures are
// collected and processing continues.
func (s *Set) LoadArchive(path string) (err error) {
	werr := archive.Walk(path, archive.WithExt(".css"), func(arc string, f *zip.File) error {
		data, rerr := archive.ReadFile(f)
		if rerr != nil {
			err = multierr.Append(err, rerr)
			return nil
		}
		if _, aerr := s.Add(string(data)); aerr != nil {
			err = multierr.Append(err, fmt.Errorf("theme %s:%s: %w", arc, f.Name, aerr))
			return nil
		}
		s.log.Debug("Theme loaded", zap.String("archive", arc), zap.String("entry", f.Name))
		return nil
	})
	return multierr.Append(werr, err)
}
