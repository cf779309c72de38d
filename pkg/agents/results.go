package agents

import (
	"finchat/pkg/contextstore"
	"finchat/pkg/llm"
	"finchat/pkg/tools"
)

// ResultsAgentID is the registry id of the results retrieval agent.
const ResultsAgentID = "results_agent"

const resultsPromptTemplate = `You are a Financial Results Agent that helps users retrieve and analyze results from financial risk analysis runs.
You have access to the following tools:

{{.Tools}}

Current conversation context:
- User is asking about: {{.ConversationSummary}}
- User's most recent message: {{.LatestUserMessage}}
{{.ActiveRunLine}}
{{.RecentRunTypesLine}}

When a user asks you to retrieve results, you should:
1. Identify which result type they need (stress test or allowance)
2. Extract necessary parameters from the user's request
3. Call the appropriate tool with the parameters
4. Format the response in a user-friendly way

Always use a tool when the user is asking for results.
Format your tool calls as JSON objects with "tool_name" and "parameters" fields.
If parameters are missing, look for context from the conversation or ask the user.`

// NewResultsAgent builds the results retrieval agent.
func NewResultsAgent(client llm.Client, invoker *tools.Invoker, store *contextstore.Store, historyBudget int) (*Agent, error) {
	return New(Config{
		Spec: Spec{
			ID:          ResultsAgentID,
			Name:        "Results Retrieval Agent",
			Description: "Retrieves stress test and allowance results from completed runs and provides download links",
		},
		PromptTemplate: resultsPromptTemplate,
		Tools:          tools.ResultsTools(),
		ContextKeys:    []string{"active_run_id", "recent_run_types"},
		PostProcess:    resultsPostProcess,
	}, client, invoker, store, historyBudget)
}

// resultsPostProcess records a retrieved download so later turns can refer to
// it without refetching.
func resultsPostProcess(_ map[string]any, call tools.Call, resp tools.Response) map[string]any {
	if resp.Status != tools.StatusSuccess {
		return nil
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		return nil
	}
	downloadID, ok := data["downloadId"].(string)
	if !ok || downloadID == "" {
		return nil
	}
	link, _ := data["link"].(string)
	runType, _ := call.Parameters["runtype"].(string)
	scenario, _ := call.Parameters["scenario"].(string)

	switch call.Name {
	case tools.ToolGetStressResults:
		return map[string]any{
			"stress_download_id":   downloadID,
			"stress_download_link": link,
			"results_type":         "stress",
			"run_type":             runType,
			"scenario":             scenario,
		}
	case tools.ToolGetAllowanceResults:
		return map[string]any{
			"allowance_download_id":   downloadID,
			"allowance_download_link": link,
			"results_type":            "allowance",
			"run_type":                runType,
			"scenario":                scenario,
		}
	default:
		return nil
	}
}
