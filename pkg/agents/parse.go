package agents

import (
	"encoding/json"
	"regexp"

	"finchat/pkg/tools"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareCallRe   = regexp.MustCompile(`\{[\s\S]*"tool_name"[\s\S]*\}`)
)

// ParseToolCall extracts at most one tool call from a model response. A
// fenced json block wins over a bare object scan. The candidate must decode
// as a JSON object carrying both "tool_name" and "parameters"; anything else
// means no tool call.
func ParseToolCall(content string) (tools.Call, bool) {
	var candidate string
	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		candidate = m[1]
	} else if m := bareCallRe.FindString(content); m != "" {
		candidate = m
	} else {
		return tools.Call{}, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return tools.Call{}, false
	}
	if _, ok := raw["tool_name"]; !ok {
		return tools.Call{}, false
	}
	if _, ok := raw["parameters"]; !ok {
		return tools.Call{}, false
	}

	var call tools.Call
	if err := json.Unmarshal([]byte(candidate), &call); err != nil {
		return tools.Call{}, false
	}
	return call, true
}
