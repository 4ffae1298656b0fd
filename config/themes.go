package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mdeck/archive"
	"mdeck/theme"
)

// Prepare creates theme set with built-in default theme and themes from
// configured paths. Path could be a directory, zip archive or single CSS
// file. Broken themes do not stop loading, all problems are reported
// together.
func (conf *ThemesConfig) Prepare(log *zap.Logger) (*theme.Set, error) {
	set := theme.NewSet(log)
	for _, key := range conf.ArrayMeta {
		set.SetMetaType(key, theme.MetaArray)
	}

	def, err := theme.NewDefault(set.MetaTypes())
	if err != nil {
		return nil, fmt.Errorf("unable to load built-in theme: %w", err)
	}
	if err := set.AddTheme(def); err != nil {
		return nil, err
	}

	var errs error
	for _, path := range conf.Paths {
		errs = multierr.Append(errs, loadThemes(set, path))
	}

	name := conf.Default
	if name == "" {
		name = theme.DefaultName
	}
	if err := set.SetDefault(name); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return set, fmt.Errorf("unable to load all themes: %w", errs)
	}
	return set, nil
}

func loadThemes(set *theme.Set, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return set.LoadDir(path)
	}
	isZip, err := archive.IsArchive(path)
	if err != nil {
		return err
	}
	if isZip {
		return set.LoadArchive(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := set.Add(string(data)); err != nil {
		return fmt.Errorf("theme %s: %w", path, err)
	}
	return nil
}
