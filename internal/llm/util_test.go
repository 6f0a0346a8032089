package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"score\": 80}\n```", `{"score": 80}`},
		{"bare fence", "```\n{\"score\": 80}\n```", `{"score": 80}`},
		{"plain", `{"score": 80}`, `{"score": 80}`},
		{"preamble", "Here is the evaluation:\n{\"score\": 72, \"reasoning\": \"ok\"}", `{"score": 72, "reasoning": "ok"}`},
		{"trailing chatter", "Result: {\"score\": 10} Hope this helps.", `{"score": 10}`},
		{"array", "Output: [1, 2]", `[1, 2]`},
		{"no json", "no json here", "no json here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}
