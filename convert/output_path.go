package convert

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"mdeck/common"
	"mdeck/config"
	"mdeck/state"
)

// buildOutputPath returns constructed output file path based on source path
// relative to processed root, destination directory and configuration. Name
// is either source file name or expanded user-defined template, which may
// contain subdirectories.
func buildOutputPath(src, dst string, values Values, format common.OutputFmt, env *state.LocalEnv) string {
	outDir := filepath.Join(dst, filepath.Dir(src))
	defaultFile := cleanPathSegment(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)), env) + format.Ext()

	if env.Cfg.Output.NameTemplate == "" {
		return filepath.Join(outDir, defaultFile)
	}

	expandedName, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Output.NameTemplate, values)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return filepath.Join(outDir, defaultFile)
	}

	segments := splitPath(filepath.FromSlash(expandedName))
	if len(segments) == 0 {
		return filepath.Join(outDir, defaultFile)
	}
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, outDir)
	for i, segment := range segments {
		segment = cleanPathSegment(segment, env)
		if i == len(segments)-1 {
			segment += format.Ext()
		}
		parts = append(parts, segment)
	}
	return filepath.Join(parts...)
}

// splitPath returns non-empty path elements, "." and ".." are dropped so
// template cannot escape destination directory.
func splitPath(path string) []string {
	segments := strings.FieldsFunc(path, func(r rune) bool {
		return r == filepath.Separator || r == '/'
	})
	return slices.DeleteFunc(segments, func(s string) bool {
		s = strings.TrimSpace(s)
		return s == "" || s == "." || s == ".."
	})
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Output.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
