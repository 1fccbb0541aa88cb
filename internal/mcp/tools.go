package mcp

import "github.com/mark3labs/mcp-go/mcp"

var indexItems = map[string]any{"type": "integer", "minimum": 0}

var initToolDef = mcp.NewTool("project_init",
	mcp.WithDescription("Create the project folders and a default .pulsekit/config.json when none exists."),
)

var statusToolDef = mcp.NewTool("project_status",
	mcp.WithDescription("Report which project folders exist and how many data files each holds. Creates nothing."),
)

var extractToolDef = mcp.NewTool("pulses_extract",
	mcp.WithDescription("Cut the windows listed in an extraction selections file out of the raw .npz captures and write them to one pulses file."),
	mcp.WithString("selections_path", mcp.Description("Extraction selections file (default: <selections_dir>/selections.json)")),
	mcp.WithString("output_path", mcp.Description("Pulses .txt file to write (default: <processed_dir>/<output_file>)")),
)

var loadToolDef = mcp.NewTool("pulses_load",
	mcp.WithDescription("Load a pulses file with its approvals. Returns counts and the full-length approval mask."),
	mcp.WithString("pulses_path", mcp.Required(), mcp.Description("Pulses .txt file")),
	mcp.WithString("selections_path", mcp.Description("Selections file (default: conventional <stem>_selections.json when it exists)")),
	mcp.WithBoolean("keep_rejected", mcp.Description("Keep disapproved pulses instead of dropping them")),
)

var approveToolDef = mcp.NewTool("pulses_approve",
	mcp.WithDescription("Approve or reject pulses by 0-based position in the pulses file and save the selections."),
	mcp.WithString("pulses_path", mcp.Required(), mcp.Description("Pulses .txt file")),
	mcp.WithArray("indices", mcp.Required(), mcp.Description("Pulse positions, 0-based"), mcp.Items(indexItems)),
	mcp.WithBoolean("approved", mcp.Description("New approval flag (default: true)")),
	mcp.WithString("selections_path", mcp.Description("Selections file holding the current approvals")),
)

var discoverToolDef = mcp.NewTool("pulses_discover",
	mcp.WithDescription("Load every pulses file of a folder, each with its conventional selections file."),
	mcp.WithString("dir", mcp.Description("Folder to scan (default: processed_dir)")),
	mcp.WithBoolean("keep_rejected", mcp.Description("Keep disapproved pulses instead of dropping them")),
)

var saveApprovedToolDef = mcp.NewTool("pulses_save_approved",
	mcp.WithDescription("Collect the approved pulses of several pulses files into one file, with a metadata file naming each pulse's source."),
	mcp.WithArray("pulses_paths", mcp.Description("Pulses files (default: every file in processed_dir)"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("output_path", mcp.Description("Pulses .txt file to write (default: timestamped file in the approved folder)")),
)

var analyzeToolDef = mcp.NewTool("charge_analyze",
	mcp.WithDescription("Integrate the current of every approved pulse of one file and write charge statistics and a histogram as JSON."),
	mcp.WithString("pulses_path", mcp.Description("Pulses .txt file (default: <processed_dir>/<output_file>)")),
	mcp.WithString("selections_path", mcp.Description("Selections file (default: conventional file when it exists)")),
	mcp.WithString("output_path", mcp.Description("Report .json file (default: timestamped file in the analysis folder)")),
	mcp.WithNumber("bins", mcp.Description("Histogram bin count (default: histogram_bins)")),
	mcp.WithNumber("unit_scale", mcp.Description("Factor applied to charges before binning (default: unit_scale)")),
	mcp.WithString("unit_label", mcp.Description("Label of the scaled unit (default: unit_label)")),
)

var batchToolDef = mcp.NewTool("charge_batch",
	mcp.WithDescription("Analyze every pulses file of a folder and write a per-file report plus a summary."),
	mcp.WithString("dir", mcp.Description("Folder to analyze (default: processed_dir)")),
	mcp.WithNumber("bins", mcp.Description("Histogram bin count (default: histogram_bins)")),
	mcp.WithNumber("unit_scale", mcp.Description("Factor applied to charges before binning (default: unit_scale)")),
	mcp.WithString("unit_label", mcp.Description("Label of the scaled unit (default: unit_label)")),
)

var historyToolDef = mcp.NewTool("runs_history",
	mcp.WithDescription("List recorded runs, most recent first, or show one run with its files and analyses."),
	mcp.WithString("run_id", mcp.Description("Show this run only")),
	mcp.WithString("kind", mcp.Description("Filter: extract, analyze, batch or save_approved")),
	mcp.WithNumber("limit", mcp.Description("Maximum runs (default: 20, max: 100)")),
)
