package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		resp *MessageResponse
		want string
	}{
		{"nil response", nil, ""},
		{"empty content", &MessageResponse{}, ""},
		{
			"single text block",
			&MessageResponse{Content: []ContentBlock{{Type: "text", Text: "hello"}}},
			"hello",
		},
		{
			"multiple blocks concatenated",
			&MessageResponse{Content: []ContentBlock{
				{Type: "text", Text: "a"},
				{Type: "text", Text: "b"},
			}},
			"ab",
		},
		{
			"non-text blocks skipped",
			&MessageResponse{Content: []ContentBlock{
				{Type: "tool_use", Text: "ignored"},
				{Type: "text", Text: "kept"},
			}},
			"kept",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.resp))
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", "Here is the result:\n{\"a\":1}", `{"a":1}`},
		{"trailing prose", "{\"a\":1}\nLet me know if you need more.", `{"a":1}`},
		{"no object", "no json here", "no json here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}
