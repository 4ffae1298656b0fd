package debug

import (
	"testing"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{name: "no depth", depth: 0, format: "test", want: "test\n"},
		{name: "depth 2", depth: 2, format: "slide %d", args: []any{3}, want: "    slide 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tw := NewTreeWriter()
	tw.TextBlock(1, "content", "a\nb")
	tw.TextBlock(1, "empty", "")
	if got, want := tw.String(), "  content: \"a\\nb\"\n"; got != want {
		t.Errorf("TextBlock() = %q, want %q", got, want)
	}
}

func TestTreeWriter_Map(t *testing.T) {
	tw := NewTreeWriter()
	tw.Map(0, "meta", map[string]any{"b": 2, "a": "x"})
	tw.Map(0, "none", nil)
	if got, want := tw.String(), "meta: a=x b=2\n"; got != want {
		t.Errorf("Map() = %q, want %q", got, want)
	}
}
