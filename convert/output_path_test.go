package convert

import (
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"mdeck/common"
	"mdeck/config"
	"mdeck/state"
)

func setupTestEnvForOutputPath(t *testing.T, transliterate bool, template string) *state.LocalEnv {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Output.FileNameTransliterate = transliterate
	cfg.Output.NameTemplate = template
	return &state.LocalEnv{Log: logger, Cfg: cfg}
}

func TestBuildOutputPath(t *testing.T) {
	dst := filepath.Join("out", "dir")
	values := Values{Title: "Über Talk", SourceFile: "talk", Slides: 5}

	tests := []struct {
		name          string
		src           string
		template      string
		transliterate bool
		format        common.OutputFmt
		want          string
	}{
		{"default html", "talk.md", "", false, common.OutputFmtHTML, filepath.Join(dst, "talk.html")},
		{"default json", "talk.md", "", false, common.OutputFmtJSON, filepath.Join(dst, "talk.json")},
		{"keeps source dirs", filepath.Join("a", "b", "talk.md"), "", false, common.OutputFmtHTML, filepath.Join(dst, "a", "b", "talk.html")},
		{"template", "talk.md", "{{ .Title }}", false, common.OutputFmtHTML, filepath.Join(dst, "Über Talk.html")},
		{"template transliterated", "talk.md", "{{ .Title }}", true, common.OutputFmtHTML, filepath.Join(dst, "uber-talk.html")},
		{"template subdirs", "talk.md", "{{ .Format }}/{{ .SourceFile }}-{{ .Slides }}", false, common.OutputFmtJSON, filepath.Join(dst, "json", "talk-5.json")},
		{"template cannot escape", "talk.md", "../../{{ .SourceFile }}", false, common.OutputFmtHTML, filepath.Join(dst, "talk.html")},
		{"empty expansion", "talk.md", "{{ .Theme }}", false, common.OutputFmtHTML, filepath.Join(dst, "talk.html")},
		{"broken template", "talk.md", "{{ .Title", false, common.OutputFmtHTML, filepath.Join(dst, "talk.html")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, tt.transliterate, tt.template)
			v := values
			v.Format = tt.format.String()
			if got := buildOutputPath(tt.src, dst, v, tt.format, env); got != tt.want {
				t.Errorf("buildOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a/b/c", []string{"a", "b", "c"}},
		{"/a//b/", []string{"a", "b"}},
		{"./a/../b", []string{"a", "b"}},
		{" ", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := splitPath(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("splitPath(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
