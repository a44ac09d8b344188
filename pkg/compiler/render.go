package compiler

import (
	"fmt"
	"strings"

	"github.com/yuin/gopher-lua/parse"
)

// Render writes one Lua line per command, newline terminated.
func Render(cmds []Command) string {
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(c.Lua())
		b.WriteByte('\n')
	}
	return b.String()
}

// CheckLua parses script as Lua 5.1 without running it. The engine API
// functions are not resolved, only syntax is checked.
func CheckLua(name, script string) error {
	if _, err := parse.Parse(strings.NewReader(script), name); err != nil {
		return fmt.Errorf("lua syntax error in %s: %w", name, err)
	}
	return nil
}
