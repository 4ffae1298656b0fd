package theme

import (
	_ "embed"
	"fmt"
	"sync"
)

//go:embed themes/scaffold.css
var scaffoldCSS string

//go:embed themes/default.css
var defaultCSS string

// ScaffoldName is the name of built-in structural theme which is always
// packed under any other theme.
const ScaffoldName = "scaffold"

// DefaultName is the name of built-in presentation theme.
const DefaultName = "default"

var (
	scaffoldOnce  sync.Once
	scaffoldTheme *Theme
)

// Scaffold returns built-in scaffold theme. It is also the final fallback
// for theme properties.
func Scaffold() *Theme {
	scaffoldOnce.Do(func() {
		t, err := FromCSS(scaffoldCSS, Options{})
		if err != nil {
			panic(fmt.Sprintf("failed to load embedded scaffold theme: %v", err))
		}
		scaffoldTheme = t
	})
	return scaffoldTheme
}

// NewDefault parses built-in default theme. Every call returns new instance
// so it could be registered in multiple sets.
func NewDefault(metaType map[string]MetaType) (*Theme, error) {
	return FromCSS(defaultCSS, Options{MetaType: metaType})
}
