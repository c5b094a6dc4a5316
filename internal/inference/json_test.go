package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare object",
			input: `{"severity":"mild"}`,
			want:  `{"severity":"mild"}`,
		},
		{
			name:  "json code fence",
			input: "```json\n{\"severity\": \"mild\"}\n```",
			want:  `{"severity": "mild"}`,
		},
		{
			name:  "bare code fence",
			input: "```\n{\"mismatch\": true}\n```",
			want:  `{"mismatch": true}`,
		},
		{
			name:  "surrounding prose",
			input: "Here is the assessment you asked for:\n{\"requires_image\": false}\nLet me know if you need more.",
			want:  `{"requires_image": false}`,
		},
		{
			name:  "nested objects",
			input: `{"urgency":{"timeframe":"24h"},"severity":"moderate"}`,
			want:  `{"urgency":{"timeframe":"24h"},"severity":"moderate"}`,
		},
		{
			name:  "no object",
			input: "I cannot help with that.",
			want:  "",
		},
		{
			name:  "unbalanced braces",
			input: `{"severity": "mild"`,
			want:  "",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.input))
		})
	}
}
