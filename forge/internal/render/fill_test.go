package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFill(t *testing.T) {
	tests := []struct {
		name     string
		stub     string
		values   map[string]string
		expected string
	}{
		{
			name:     "spacing variants",
			stub:     "{{module}} {{ module }} {{   module   }}",
			values:   map[string]string{"module": "Invoice"},
			expected: "Invoice Invoice Invoice",
		},
		{
			name:     "unknown placeholder left verbatim",
			stub:     "type {{ module }} struct{ {{ unknown }} }",
			values:   map[string]string{"module": "Invoice"},
			expected: "type Invoice struct{ {{ unknown }} }",
		},
		{
			name:     "values are not expanded again",
			stub:     "{{ a }}",
			values:   map[string]string{"a": "{{ b }}", "b": "nope"},
			expected: "{{ b }}",
		},
		{
			name:     "template actions are not placeholders",
			stub:     "{{ .Name }} {{- range . }}",
			values:   map[string]string{"Name": "x"},
			expected: "{{ .Name }} {{- range . }}",
		},
		{
			name:     "no placeholders",
			stub:     "package entities\n",
			values:   nil,
			expected: "package entities\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fill(tt.stub, tt.values))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	keys := Placeholders("{{ b }} {{a}} {{ b }} {{ .C }}")
	assert.Equal(t, []string{"a", "b"}, keys)

	assert.Equal(t, []string{"b"}, missing("{{ a }} {{ b }}", map[string]string{"a": ""}))
}
