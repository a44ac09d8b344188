package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars map[string]string
		want string
	}{
		{"simple", "Build {user_input} now", map[string]string{"user_input": "a crypt"}, "Build a crypt now"},
		{"repeated", "{a}-{a}", map[string]string{"a": "x"}, "x-x"},
		{"escaped braces", `Return {{"grid": {b}}}`, map[string]string{"b": "1"}, `Return {"grid": 1}`},
		{"escaped placeholder", "{{user_input}}", map[string]string{}, "{user_input}"},
		{"loose braces kept", `{"x": 1}`, nil, `{"x": 1}`},
		{"values are not re-expanded", "{a}", map[string]string{"a": "{b}", "b": "no"}, "{b}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.tmpl, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderTemplate_UnknownPlaceholder(t *testing.T) {
	_, err := RenderTemplate("{blueprint} and {stage_lua}", map[string]string{"blueprint": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{stage_lua}")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "print(1)\n", stripCodeFence("```lua\nprint(1)\n```"))
	assert.Equal(t, "a\nb\n", stripCodeFence("  ```\na\nb\n```  \n"))
	assert.Equal(t, "print(1)", stripCodeFence("print(1)"))
	assert.Equal(t, "text ```lua\nx\n``` more", stripCodeFence("text ```lua\nx\n``` more"))
}
