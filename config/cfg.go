package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"mdeck/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ElementConfig struct {
		Tag   string `yaml:"tag" validate:"required"`
		Class string `yaml:"class,omitempty"`
		ID    string `yaml:"id,omitempty"`
	}

	InlineSVGConfig struct {
		Enable           bool `yaml:"enable"`
		WebKitWorkaround bool `yaml:"webkit_workaround"`
	}

	ContainerQueryConfig struct {
		Enable bool     `yaml:"enable"`
		Names  []string `yaml:"names,omitempty" validate:"dive,required"`
	}

	// CustomDirectiveConfig expands single custom directive into built-in
	// assignments. "$value" in assignment values is replaced with directive
	// value.
	CustomDirectiveConfig struct {
		Global bool              `yaml:"global"`
		Assign map[string]string `yaml:"assign" validate:"required,min=1"`
	}

	DeckConfig struct {
		// nil means default "div.marpit", explicitly empty list disables
		// containers
		Containers       []ElementConfig                  `yaml:"containers" validate:"omitempty,dive"`
		SlideContainers  []ElementConfig                  `yaml:"slide_containers" validate:"omitempty,dive"`
		Anchor           common.AnchorMode                `yaml:"anchor"`
		HeadingDivider   []int                            `yaml:"heading_divider" validate:"omitempty,dive,min=1,max=6"`
		LooseYAML        bool                             `yaml:"loose_yaml"`
		InlineSVG        InlineSVGConfig                  `yaml:"inline_svg"`
		InlineStyle      bool                             `yaml:"inline_style"`
		HTML             bool                             `yaml:"html"`
		Printable        bool                             `yaml:"printable"`
		CSSNesting       bool                             `yaml:"css_nesting"`
		ContainerQuery   ContainerQueryConfig             `yaml:"container_query"`
		Lang             string                           `yaml:"lang" validate:"omitempty,bcp47_language_tag"`
		CustomDirectives map[string]CustomDirectiveConfig `yaml:"custom_directives,omitempty" validate:"omitempty,dive"`
	}

	ThemesConfig struct {
		Default string `yaml:"default"`
		// directories with *.css files and zip archives containing them
		Paths []string `yaml:"paths,omitempty" validate:"omitempty,dive,required"`
		// meta keys which accumulate values instead of overriding them
		ArrayMeta []string `yaml:"array_meta,omitempty"`
	}

	OutputConfig struct {
		Format                common.OutputFmt `yaml:"format"`
		NameTemplate          string           `yaml:"name_template"`
		DocumentTemplate      string           `yaml:"document_template_path" sanitize:"assure_file_access"`
		TitleTemplate         string           `yaml:"title_template"`
		FileNameTransliterate bool             `yaml:"file_name_transliterate"`
		SlidesAsArray         bool             `yaml:"slides_as_array"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Deck      DeckConfig     `yaml:"deck"`
		Themes    ThemesConfig   `yaml:"themes"`
		Output    OutputConfig   `yaml:"output"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "name_template"
	TitleTemplateFieldName      TemplateFieldName = "title_template"
)

// ValuePlaceholder is replaced with directive value in custom directive
// assignments.
const ValuePlaceholder = "$value"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(TitleTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
