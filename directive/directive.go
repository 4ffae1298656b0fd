// Package directive decodes directive bodies and resolves them into
// normalized per-scope assignments. Built-in directives form a closed set,
// hosts may extend it with custom directives which expand into built-ins.
package directive

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Scope of the directive.
type Scope int

const (
	// ScopeGlobal directives apply to the whole deck, last definition wins.
	ScopeGlobal Scope = iota
	// ScopeLocal directives apply from defining slide forward, with
	// underscore prefix they apply to the defining slide only (spot).
	ScopeLocal
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	}
	return "scope(" + strconv.Itoa(int(s)) + ")"
}

// Built-in directive names.
const (
	Theme          = "theme"
	Style          = "style"
	HeadingDivider = "headingDivider"
	Lang           = "lang"

	BackgroundColor    = "backgroundColor"
	BackgroundImage    = "backgroundImage"
	BackgroundPosition = "backgroundPosition"
	BackgroundRepeat   = "backgroundRepeat"
	BackgroundSize     = "backgroundSize"
	Class              = "class"
	Color              = "color"
	Footer             = "footer"
	Header             = "header"
	Paginate           = "paginate"
)

// Prefixes modifying directive scope.
const (
	SpotPrefix   = "_"
	GlobalPrefix = "$"
)

// Paginate values.
const (
	PaginateHold = "hold"
	PaginateSkip = "skip"
)

// Themes reports known theme names.
type Themes interface {
	Has(name string) bool
}

type normalizer func(v any, themes Themes) (string, bool)

type builtin struct {
	scope     Scope
	normalize normalizer
}

var builtins = map[string]builtin{
	Theme:          {ScopeGlobal, normTheme},
	Style:          {ScopeGlobal, normString},
	HeadingDivider: {ScopeGlobal, normHeadingDivider},
	Lang:           {ScopeGlobal, normLang},

	BackgroundColor:    {ScopeLocal, normString},
	BackgroundImage:    {ScopeLocal, normString},
	BackgroundPosition: {ScopeLocal, normString},
	BackgroundRepeat:   {ScopeLocal, normString},
	BackgroundSize:     {ScopeLocal, normString},
	Class:              {ScopeLocal, normClass},
	Color:              {ScopeLocal, normString},
	Footer:             {ScopeLocal, normString},
	Header:             {ScopeLocal, normString},
	Paginate:           {ScopeLocal, normPaginate},
}

// Builtins returns names of all built-in directives, globals first.
func Builtins() []string {
	return append(Globals(), Locals()...)
}

// Globals returns sorted names of built-in global directives.
func Globals() []string {
	return namesOf(ScopeGlobal)
}

// Locals returns sorted names of built-in local directives.
func Locals() []string {
	return namesOf(ScopeLocal)
}

func namesOf(scope Scope) []string {
	var out []string
	for name, b := range builtins {
		if b.scope == scope {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// IsBuiltin reports if name is built-in directive of any scope.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// Normalize converts decoded value of built-in directive into its canonical
// string form. False is returned for unknown names and values which are not
// acceptable for the directive.
func Normalize(name string, value any, themes Themes) (string, bool) {
	b, ok := builtins[name]
	if !ok {
		return "", false
	}
	return b.normalize(value, themes)
}

func normString(v any, _ Themes) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func normTheme(v any, themes Themes) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if themes != nil && !themes.Has(s) {
		return "", false
	}
	return s, true
}

func normLang(v any, _ Themes) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if s == "" {
		return "", true
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	return tag.String(), true
}

func normClass(v any, _ Themes) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			s, ok := p.(string)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}

func normPaginate(v any, _ Themes) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "false", true
	}
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case PaginateHold, PaginateSkip, "true":
		return s, true
	}
	return "false", true
}

var headingLevels = []int{1, 2, 3, 4, 5, 6}

func normHeadingDivider(v any, _ Themes) (string, bool) {
	switch val := v.(type) {
	case string:
		if val == "false" {
			return "false", true
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || !slices.Contains(headingLevels, n) {
			return "", false
		}
		return formatLevels(headingLevels[:n]), true
	case []any:
		var want []int
		for _, p := range val {
			s, ok := p.(string)
			if !ok {
				continue
			}
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				want = append(want, n)
			}
		}
		var levels []int
		for _, l := range headingLevels {
			if slices.Contains(want, l) {
				levels = append(levels, l)
			}
		}
		return formatLevels(levels), true
	}
	return "", false
}

func formatLevels(levels []int) string {
	parts := make([]string, 0, len(levels))
	for _, l := range levels {
		parts = append(parts, strconv.Itoa(l))
	}
	return strings.Join(parts, ",")
}

// ParseHeadingDivider converts normalized headingDivider value back into
// heading levels. "false" and empty value mean no division.
func ParseHeadingDivider(s string) ([]int, error) {
	if s == "" || s == "false" {
		return nil, nil
	}
	var levels []int
	for p := range strings.SplitSeq(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || !slices.Contains(headingLevels, n) {
			return nil, fmt.Errorf("bad heading level %q", p)
		}
		levels = append(levels, n)
	}
	return levels, nil
}

// Set is a resolved directive map, values are normalized strings.
type Set map[string]string

// Truthy reports if directive is set to a value which enables it.
func (s Set) Truthy(name string) bool {
	v, ok := s[name]
	return ok && v != "" && v != "false"
}

// Clone returns independent copy of the set, never nil.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	maps.Copy(out, s)
	return out
}

// Merge combines sets, later sets override earlier ones.
func Merge(sets ...Set) Set {
	out := Set{}
	for _, s := range sets {
		maps.Copy(out, s)
	}
	return out
}
