package tools

// Tool names shared between definitions, handlers, and agent post-processing.
const (
	ToolStartBatchRun       = "start_batch_run"
	ToolGetRunStatus        = "get_run_status"
	ToolKillRun             = "kill_run"
	ToolGetRunLog           = "get_run_log"
	ToolGetStressResults    = "get_stress_results"
	ToolGetAllowanceResults = "get_allowance_results"
)

// BatchTools returns the static tool set of the batch processing service.
func BatchTools() []Definition {
	return []Definition{
		{
			Name:        ToolStartBatchRun,
			Description: "Start a new batch run with the specified parameters",
			Params: []Param{
				{
					Name:        "runType",
					Description: "Type of the run (CCAR, RiskApetite, or Stress)",
					Type:        "string",
					Required:    true,
					Enum:        []string{"CCAR", "RiskApetite", "Stress"},
				},
				{
					Name:        "runScenario",
					Description: "Scenario for the run",
					Type:        "string",
				},
				{
					Name:        "cobDate",
					Description: "Month end or Qtr end COB date for the run (format: YYYYMMDD)",
					Type:        "string",
				},
				{
					Name:        "runGroup",
					Description: "Group for the run",
					Type:        "string",
				},
			},
		},
		{
			Name:        ToolGetRunStatus,
			Description: "Get the status of a run",
			Params: []Param{
				{Name: "runId", Description: "ID of the run to check", Type: "string", Required: true},
			},
		},
		{
			Name:        ToolKillRun,
			Description: "Kill a running batch job",
			Params: []Param{
				{Name: "runId", Description: "ID of the run to kill", Type: "string", Required: true},
			},
		},
		{
			Name:        ToolGetRunLog,
			Description: "Get the log of a run",
			Params: []Param{
				{Name: "runId", Description: "ID of the run to get logs for", Type: "string", Required: true},
			},
		},
	}
}

// ResultsTools returns the static tool set of the results retrieval service.
func ResultsTools() []Definition {
	resultParams := []Param{
		{Name: "runtype", Description: "Type of the run", Type: "string", Required: true},
		{Name: "cob", Description: "Cut-off date for the run (format: YYYYMMDD)", Type: "string", Required: true},
		{Name: "scenario", Description: "Scenario for the run", Type: "string", Required: true},
	}

	return []Definition{
		{
			Name:        ToolGetStressResults,
			Description: "Get stress test results and provide download link to DS2.xlsx",
			Params:      resultParams,
		},
		{
			Name:        ToolGetAllowanceResults,
			Description: "Get allowance results and provide download link to DS1.xlsx",
			Params:      resultParams,
		},
	}
}
