package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{|\}\}|\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// RenderTemplate substitutes {name} placeholders from vars. "{{" and "}}"
// produce literal braces; any other brace is copied as is. Naming a
// placeholder that vars does not define is an error.
func RenderTemplate(tmpl string, vars map[string]string) (string, error) {
	var unknown []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			unknown = append(unknown, name)
			return m
		}
		return v
	})
	if len(unknown) > 0 {
		return "", fmt.Errorf("unknown placeholder {%s}", strings.Join(unknown, "}, {"))
	}
	return out, nil
}

var fenceRe = regexp.MustCompile("(?s)^\\s*```[A-Za-z]*[ \\t]*\\r?\\n(.*?)\\r?\\n?```\\s*$")

// stripCodeFence unwraps a reply that is a single fenced code block.
func stripCodeFence(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1] + "\n"
	}
	return text
}
