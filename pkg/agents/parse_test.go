package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolCallFencedJSON(t *testing.T) {
	content := "I'll start that run for you.\n```json\n{\"tool_name\": \"start_batch_run\", \"parameters\": {\"runType\": \"CCAR\"}}\n```"

	call, ok := ParseToolCall(content)

	require.True(t, ok)
	assert.Equal(t, "start_batch_run", call.Name)
	assert.Equal(t, "CCAR", call.Parameters["runType"])
}

func TestParseToolCallBareObject(t *testing.T) {
	content := `Sure: {"tool_name": "get_run_status", "parameters": {"runId": "run-1"}}`

	call, ok := ParseToolCall(content)

	require.True(t, ok)
	assert.Equal(t, "get_run_status", call.Name)
	assert.Equal(t, "run-1", call.Parameters["runId"])
}

func TestParseToolCallFencePreferredOverBare(t *testing.T) {
	content := "```json\n{\"tool_name\": \"kill_run\", \"parameters\": {}}\n```\nignore {\"tool_name\": \"other\", \"parameters\": {}}"

	call, ok := ParseToolCall(content)

	require.True(t, ok)
	assert.Equal(t, "kill_run", call.Name)
}

func TestParseToolCallRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain text", "The run completed successfully."},
		{"missing parameters", `{"tool_name": "kill_run"}`},
		{"missing tool_name", `{"parameters": {"runId": "r1"}}`},
		{"malformed json", "```json\n{\"tool_name\": \"x\", \"parameters\":\n```"},
		{"parameters not object", `{"tool_name": "x", "parameters": "bad"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseToolCall(tt.content)
			assert.False(t, ok)
		})
	}
}
