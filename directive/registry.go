package directive

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

var (
	// ErrBuiltinShadow is returned when custom directive uses built-in name.
	ErrBuiltinShadow = errors.New("custom directive cannot shadow built-in directive")
	// ErrInvalidName is returned for custom directive names which cannot be
	// written in directive comments.
	ErrInvalidName = errors.New("invalid custom directive name")
)

var reCustomName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// CustomFunc expands custom directive value into built-in directive
// assignments. Returned keys which are not built-ins of the same scope are
// ignored.
type CustomFunc func(value any) map[string]any

// Registry holds host defined custom directives. Zero value is not usable,
// nil registry has no custom directives.
type Registry struct {
	global map[string]CustomFunc
	local  map[string]CustomFunc
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{
		global: make(map[string]CustomFunc),
		local:  make(map[string]CustomFunc),
	}
}

// DefineGlobal registers custom global directive.
func (r *Registry) DefineGlobal(name string, fn CustomFunc) error {
	return r.define(r.global, name, fn)
}

// DefineLocal registers custom local directive, it is also usable with spot
// prefix.
func (r *Registry) DefineLocal(name string, fn CustomFunc) error {
	return r.define(r.local, name, fn)
}

func (r *Registry) define(dst map[string]CustomFunc, name string, fn CustomFunc) error {
	if IsBuiltin(name) {
		return fmt.Errorf("%w: %s", ErrBuiltinShadow, name)
	}
	if !reCustomName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if fn == nil {
		return fmt.Errorf("custom directive %s: nil function", name)
	}
	dst[name] = fn
	return nil
}

// Names returns sorted names of all custom directives.
func (r *Registry) Names() []string {
	if r == nil {
		return []string{}
	}
	names := slices.Collect(maps.Keys(r.global))
	for name := range r.local {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (r *Registry) lookup(scope Scope, name string) (CustomFunc, bool) {
	if r == nil {
		return nil, false
	}
	m := r.local
	if scope == ScopeGlobal {
		m = r.global
	}
	fn, ok := m[name]
	return fn, ok
}

// Resolver applies decoded directive maps. It is the single place which
// decides what a directive name means: built-ins first, then custom
// definitions.
type Resolver struct {
	Registry *Registry
	Themes   Themes
}

// Global applies global directives of obj to dst. Result reports if at
// least one key was recognized.
func (r Resolver) Global(dst Set, obj map[string]any) bool {
	recognized := false
	for _, key := range sortedKeys(obj) {
		name := strings.TrimPrefix(key, GlobalPrefix)
		if r.apply(dst, ScopeGlobal, name, obj[key]) {
			recognized = true
		}
	}
	return recognized
}

// Local applies local directives of obj to local and spot directives
// (underscore prefixed) to spot. Result reports if at least one key was
// recognized.
func (r Resolver) Local(local, spot Set, obj map[string]any) bool {
	recognized := false
	for _, key := range sortedKeys(obj) {
		dst, name := local, key
		if after, ok := strings.CutPrefix(key, SpotPrefix); ok {
			dst, name = spot, after
		}
		if r.apply(dst, ScopeLocal, name, obj[key]) {
			recognized = true
		}
	}
	return recognized
}

func (r Resolver) apply(dst Set, scope Scope, name string, value any) bool {
	if b, ok := builtins[name]; ok {
		if b.scope != scope {
			return false
		}
		if v, ok := b.normalize(value, r.Themes); ok {
			dst[name] = v
		}
		return true
	}
	fn, ok := r.Registry.lookup(scope, name)
	if !ok {
		return false
	}
	expanded := fn(value)
	for _, k := range sortedKeys(expanded) {
		b, ok := builtins[k]
		if !ok || b.scope != scope {
			continue
		}
		if v, ok := b.normalize(expanded[k], r.Themes); ok {
			dst[k] = v
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
