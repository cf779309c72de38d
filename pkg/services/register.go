package services

import (
	"context"

	"finchat/pkg/tools"
)

// Defaults applied when the model omits optional start_batch_run parameters.
// They match what the batch service itself would assume.
const (
	defaultRunScenario = "Base"
	defaultCOBDate     = "20243112"
	defaultRunGroup    = "default_group"
)

// stringParam extracts a string parameter, falling back to def when the key
// is missing or not a string. Parameter shapes are validated by the remote
// side; the orchestrator only coerces types.
func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// RegisterBatchTools wires the batch service client into the invoker under
// the batch tool names.
func RegisterBatchTools(inv *tools.Invoker, client *BatchClient) error {
	handlers := map[string]tools.Handler{
		tools.ToolStartBatchRun: func(ctx context.Context, params map[string]any) (any, error) {
			return client.StartRun(ctx,
				stringParam(params, "runType", ""),
				stringParam(params, "runScenario", defaultRunScenario),
				stringParam(params, "cobDate", defaultCOBDate),
				stringParam(params, "runGroup", defaultRunGroup),
			)
		},
		tools.ToolGetRunStatus: func(ctx context.Context, params map[string]any) (any, error) {
			return client.RunStatus(ctx, stringParam(params, "runId", ""))
		},
		tools.ToolKillRun: func(ctx context.Context, params map[string]any) (any, error) {
			return client.KillRun(ctx, stringParam(params, "runId", ""))
		},
		tools.ToolGetRunLog: func(ctx context.Context, params map[string]any) (any, error) {
			return client.RunLog(ctx, stringParam(params, "runId", ""))
		},
	}

	for name, handler := range handlers {
		if err := inv.Register(name, handler); err != nil {
			return err
		}
	}
	return nil
}

// RegisterResultsTools wires the results service client into the invoker
// under the results tool names.
func RegisterResultsTools(inv *tools.Invoker, client *ResultsClient) error {
	handlers := map[string]tools.Handler{
		tools.ToolGetStressResults: func(ctx context.Context, params map[string]any) (any, error) {
			return client.StressResults(ctx,
				stringParam(params, "runtype", ""),
				stringParam(params, "cob", ""),
				stringParam(params, "scenario", ""),
			)
		},
		tools.ToolGetAllowanceResults: func(ctx context.Context, params map[string]any) (any, error) {
			return client.AllowanceResults(ctx,
				stringParam(params, "runtype", ""),
				stringParam(params, "cob", ""),
				stringParam(params, "scenario", ""),
			)
		},
	}

	for name, handler := range handlers {
		if err := inv.Register(name, handler); err != nil {
			return err
		}
	}
	return nil
}
