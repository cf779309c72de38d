package agents

import (
	"finchat/pkg/contextstore"
	"finchat/pkg/llm"
	"finchat/pkg/tools"
)

// BatchAgentID is the registry id of the batch processing agent.
const BatchAgentID = "batch_agent"

const batchPromptTemplate = `You are a Financial Batch Processing Agent that helps users manage batch runs for financial risk analysis.
You have access to the following tools:

{{.Tools}}

Current conversation context:
- User is asking about: {{.ConversationSummary}}
- User's most recent message: {{.LatestUserMessage}}
{{.ActiveRunLine}}

When a user asks you to perform an action, you should:
1. Identify which tool to use
2. Extract necessary parameters from the user's request
3. Call the appropriate tool with the parameters
4. Format the response in a user-friendly way

Always use a tool when the user is asking about starting, checking, or managing batch runs.
Format your tool calls as JSON objects with "tool_name" and "parameters" fields.`

// NewBatchAgent builds the batch processing agent.
func NewBatchAgent(client llm.Client, invoker *tools.Invoker, store *contextstore.Store, historyBudget int) (*Agent, error) {
	return New(Config{
		Spec: Spec{
			ID:          BatchAgentID,
			Name:        "Batch Processing Agent",
			Description: "Starts, monitors, and manages batch runs for financial risk analysis (CCAR, RiskApetite, Stress)",
		},
		PromptTemplate: batchPromptTemplate,
		Tools:          tools.BatchTools(),
		ContextKeys:    []string{"active_run_id", "run_history"},
		PostProcess:    batchPostProcess,
	}, client, invoker, store, historyBudget)
}

// batchPostProcess records a successfully started run: it becomes the active
// run and gains a run-history entry.
func batchPostProcess(shared map[string]any, call tools.Call, resp tools.Response) map[string]any {
	if call.Name != tools.ToolStartBatchRun || resp.Status != tools.StatusSuccess {
		return nil
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		return nil
	}
	runID, ok := data["runId"].(string)
	if !ok || runID == "" {
		return nil
	}

	runType, _ := call.Parameters["runType"].(string)
	runScenario, ok := call.Parameters["runScenario"].(string)
	if !ok || runScenario == "" {
		runScenario = "Base"
	}
	timestamp, ok := data["startTime"].(string)
	if !ok || timestamp == "" {
		timestamp = "unknown"
	}

	history, _ := shared["run_history"].([]any)
	history = append(history, map[string]any{
		"runId":       runID,
		"runType":     runType,
		"runScenario": runScenario,
		"timestamp":   timestamp,
	})

	return map[string]any{
		"active_run_id": runID,
		"run_type":      runType,
		"run_scenario":  runScenario,
		"run_history":   history,
	}
}
