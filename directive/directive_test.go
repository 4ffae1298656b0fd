package directive

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		loose  []string
		want   map[string]any
		wantOK bool
	}{
		{
			name:   "scalars stay strings",
			text:   "theme: gaia\npaginate: true\nsize: 16",
			want:   map[string]any{"theme": "gaia", "paginate": "true", "size": "16"},
			wantOK: true,
		},
		{
			name:   "sequence",
			text:   "class: [a, b]",
			want:   map[string]any{"class": []any{"a", "b"}},
			wantOK: true,
		},
		{
			name:   "nested mapping",
			text:   "x:\n  y: z",
			want:   map[string]any{"x": map[string]any{"y": "z"}},
			wantOK: true,
		},
		{
			name:   "hash starts comment in strict mode",
			text:   "color: #fff",
			want:   map[string]any{"color": ""},
			wantOK: true,
		},
		{name: "duplicate keys", text: "a: 1\na: 2"},
		{name: "not a mapping", text: "just some text"},
		{name: "empty", text: ""},
		{name: "syntax error", text: "a: [b"},
		{name: "strict rejects nested colon", text: "foo: a: b"},
		{
			name:   "loose quotes built-ins",
			text:   "color: #fff\n_backgroundColor:   #000",
			loose:  []string{},
			want:   map[string]any{"color": "#fff", "_backgroundColor": "#000"},
			wantOK: true,
		},
		{
			name:   "loose quotes custom names",
			text:   "foo: a: \"b\"",
			loose:  []string{"foo"},
			want:   map[string]any{"foo": `a: "b"`},
			wantOK: true,
		},
		{
			name:   "loose keeps structural values",
			text:   "class: [a, b]\nheader: 'x y'",
			loose:  []string{},
			want:   map[string]any{"class": []any{"a", "b"}, "header": "x y"},
			wantOK: true,
		},
		{
			name:   "loose ignores unknown names",
			text:   "bar: #fff",
			loose:  []string{"foo"},
			want:   map[string]any{"bar": ""},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode(tt.text, tt.loose)
			if ok != tt.wantOK {
				t.Fatalf("Decode() ok = %v, want %v (got %v)", ok, tt.wantOK, got)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		dir    string
		value  any
		want   string
		wantOK bool
	}{
		{"class list", Class, []any{"a", "b"}, "a b", true},
		{"class string", Class, "lead", "lead", true},
		{"class bad list", Class, []any{"a", []any{"b"}}, "", false},
		{"header must be string", Header, []any{"x"}, "", false},
		{"paginate true", Paginate, "TRUE", "true", true},
		{"paginate hold", Paginate, "Hold", "hold", true},
		{"paginate skip", Paginate, "skip", "skip", true},
		{"paginate garbage", Paginate, "yes", "false", true},
		{"divider level", HeadingDivider, "2", "1,2", true},
		{"divider list", HeadingDivider, []any{"3", "1", "9"}, "1,3", true},
		{"divider false", HeadingDivider, "false", "false", true},
		{"divider out of range", HeadingDivider, "7", "", false},
		{"lang", Lang, "en-us", "en-US", true},
		{"lang invalid", Lang, "!!", "", false},
		{"unknown", "nope", "x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.dir, tt.value, nil)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Normalize(%s, %v) = %q, %v, want %q, %v", tt.dir, tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseHeadingDivider(t *testing.T) {
	if got, err := ParseHeadingDivider("1,3"); err != nil || !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("ParseHeadingDivider(1,3) = %v, %v", got, err)
	}
	if got, err := ParseHeadingDivider("false"); err != nil || got != nil {
		t.Errorf("ParseHeadingDivider(false) = %v, %v", got, err)
	}
	if _, err := ParseHeadingDivider("0"); err == nil {
		t.Error("ParseHeadingDivider(0) expected error")
	}
}

type themeNames []string

func (n themeNames) Has(name string) bool {
	for _, v := range n {
		if v == name {
			return true
		}
	}
	return false
}

func TestResolver_Global(t *testing.T) {
	r := Resolver{Themes: themeNames{"gaia"}}

	dst := Set{}
	if !r.Global(dst, map[string]any{"$theme": "gaia", "color": "red"}) {
		t.Fatal("expected recognized global directive")
	}
	if want := (Set{Theme: "gaia"}); !reflect.DeepEqual(dst, want) {
		t.Errorf("globals = %v, want %v", dst, want)
	}

	// unknown theme is recognized but ignored
	if !r.Global(dst, map[string]any{"theme": "unknown"}) {
		t.Error("theme directive must be recognized")
	}
	if dst[Theme] != "gaia" {
		t.Errorf("theme = %q, want gaia", dst[Theme])
	}

	if r.Global(dst, map[string]any{"unrelated": "x"}) {
		t.Error("unknown directive must not be recognized")
	}
}

func TestResolver_LocalAndSpot(t *testing.T) {
	r := Resolver{}
	local, spot := Set{}, Set{}

	ok := r.Local(local, spot, map[string]any{
		"color":            "red",
		"_backgroundColor": "blue",
		"theme":            "gaia",
		"_unknown":         "x",
	})
	if !ok {
		t.Fatal("expected recognized directives")
	}
	if want := (Set{Color: "red"}); !reflect.DeepEqual(local, want) {
		t.Errorf("local = %v, want %v", local, want)
	}
	if want := (Set{BackgroundColor: "blue"}); !reflect.DeepEqual(spot, want) {
		t.Errorf("spot = %v, want %v", spot, want)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if err := reg.DefineGlobal(Theme, func(any) map[string]any { return nil }); !errors.Is(err, ErrBuiltinShadow) {
		t.Errorf("DefineGlobal(theme) error = %v", err)
	}
	if err := reg.DefineLocal(Paginate, func(any) map[string]any { return nil }); !errors.Is(err, ErrBuiltinShadow) {
		t.Errorf("DefineLocal(paginate) error = %v", err)
	}
	if err := reg.DefineLocal("_spot", func(any) map[string]any { return nil }); !errors.Is(err, ErrInvalidName) {
		t.Errorf("DefineLocal(_spot) error = %v", err)
	}

	err := reg.DefineLocal("colorPreset", func(v any) map[string]any {
		if v == "sunset" {
			return map[string]any{"backgroundColor": "#e62", "color": "white", "theme": "gaia"}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = reg.DefineGlobal("deck", func(v any) map[string]any {
		return map[string]any{"headingDivider": v, "paginate": "true"}
	})
	if err != nil {
		t.Fatal(err)
	}

	if got, want := reg.Names(), []string{"colorPreset", "deck"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	r := Resolver{Registry: reg}
	local, spot := Set{}, Set{}
	if !r.Local(local, spot, map[string]any{"_colorPreset": "sunset"}) {
		t.Fatal("custom local directive not recognized")
	}
	if len(local) != 0 {
		t.Errorf("local = %v, want empty", local)
	}
	if want := (Set{BackgroundColor: "#e62", Color: "white"}); !reflect.DeepEqual(spot, want) {
		t.Errorf("spot = %v, want %v", spot, want)
	}

	globals := Set{}
	if !r.Global(globals, map[string]any{"deck": "2"}) {
		t.Fatal("custom global directive not recognized")
	}
	if want := (Set{HeadingDivider: "1,2"}); !reflect.DeepEqual(globals, want) {
		t.Errorf("globals = %v, want %v", globals, want)
	}
}

func TestSet(t *testing.T) {
	s := Set{Paginate: "false", Color: "", Class: "x"}
	if s.Truthy(Paginate) || s.Truthy(Color) || s.Truthy(Header) {
		t.Error("false, empty and missing values must not be truthy")
	}
	if !s.Truthy(Class) {
		t.Error("class must be truthy")
	}

	m := Merge(Set{Color: "red", Class: "a"}, Set{Class: "b"}, nil)
	if want := (Set{Color: "red", Class: "b"}); !reflect.DeepEqual(m, want) {
		t.Errorf("Merge() = %v, want %v", m, want)
	}

	c := m.Clone()
	c[Color] = "blue"
	if m[Color] != "red" {
		t.Error("Clone() must not share storage")
	}
}
