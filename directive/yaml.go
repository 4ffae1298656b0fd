package directive

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlSpecial lists first characters which make loose value structural,
// such values are never quoted.
const yamlSpecial = `["'{|>~&*`

// Decode parses directive body using failsafe grammar: every scalar is a
// string, sequences become []any and mappings map[string]any. Top level must
// be a mapping. Any failure (syntax error, duplicate keys, non-mapping
// document) results in (nil, false).
//
// When loose is not nil body is pre-processed first: plain values of
// built-in directives and of the names listed in loose are quoted so values
// like "#fff" or "a: b" survive.
func Decode(text string, loose []string) (map[string]any, bool) {
	if loose != nil {
		text = quoteLoose(text, append(Builtins(), loose...))
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, false
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, false
		}
		root = root.Content[0]
	}
	root = resolveAlias(root)
	if root.Kind != yaml.MappingNode {
		return nil, false
	}
	v, ok := failsafe(root)
	if !ok {
		return nil, false
	}
	return v.(map[string]any), true
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func failsafe(n *yaml.Node) (any, bool) {
	n = resolveAlias(n)
	if n == nil {
		return "", true
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, true

	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, ok := failsafe(c)
			if !ok {
				return nil, false
			}
			out = append(out, v)
		}
		return out, true

	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := resolveAlias(n.Content[i])
			if k == nil || k.Kind != yaml.ScalarNode {
				return nil, false
			}
			if _, dup := out[k.Value]; dup {
				return nil, false
			}
			v, ok := failsafe(n.Content[i+1])
			if !ok {
				return nil, false
			}
			out[k.Value] = v
		}
		return out, true
	}
	return nil, false
}

func quoteLoose(text string, names []string) string {
	if len(names) == 0 {
		return text
	}
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	re := regexp.MustCompile(`^([_$]?(?:` + strings.Join(quoted, "|") + `)\s*:)(.+)$`)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		m := re.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
		if m == nil {
			continue
		}
		prop, value := m[1], m[2]
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || strings.ContainsRune(yamlSpecial, rune(trimmed[0])) {
			continue
		}
		spaces := value[:len(value)-len(strings.TrimLeft(value, " \t"))]
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(trimmed)
		lines[i] = prop + spaces + `"` + escaped + `"`
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
