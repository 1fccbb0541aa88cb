package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db   *sql.DB
	cfg  *config.Config
	root string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(database *sql.DB, cfg *config.Config, root string) *Handlers {
	return &Handlers{db: database, cfg: cfg, root: root}
}

// Request types for each tool

// ExtractRequest represents the arguments for pulses_extract.
type ExtractRequest struct {
	SelectionsPath string `json:"selections_path,omitempty"`
	OutputPath     string `json:"output_path,omitempty"`
}

// LoadRequest represents the arguments for pulses_load.
type LoadRequest struct {
	PulsesPath     string `json:"pulses_path"`
	SelectionsPath string `json:"selections_path,omitempty"`
	KeepRejected   bool   `json:"keep_rejected,omitempty"`
}

// ApproveRequest represents the arguments for pulses_approve.
type ApproveRequest struct {
	PulsesPath     string `json:"pulses_path"`
	Indices        []int  `json:"indices"`
	Approved       *bool  `json:"approved,omitempty"`
	SelectionsPath string `json:"selections_path,omitempty"`
}

// DiscoverRequest represents the arguments for pulses_discover.
type DiscoverRequest struct {
	Dir          string `json:"dir,omitempty"`
	KeepRejected bool   `json:"keep_rejected,omitempty"`
}

// SaveApprovedRequest represents the arguments for pulses_save_approved.
type SaveApprovedRequest struct {
	PulsesPaths []string `json:"pulses_paths,omitempty"`
	OutputPath  string   `json:"output_path,omitempty"`
}

// HistogramRequest holds the histogram arguments shared by the charge tools.
type HistogramRequest struct {
	Bins      int     `json:"bins,omitempty"`
	UnitScale float64 `json:"unit_scale,omitempty"`
	UnitLabel string  `json:"unit_label,omitempty"`
}

func (r HistogramRequest) options() ops.HistogramOptions {
	return ops.HistogramOptions{Bins: r.Bins, UnitScale: r.UnitScale, UnitLabel: r.UnitLabel}
}

// AnalyzeRequest represents the arguments for charge_analyze.
type AnalyzeRequest struct {
	PulsesPath     string `json:"pulses_path,omitempty"`
	SelectionsPath string `json:"selections_path,omitempty"`
	OutputPath     string `json:"output_path,omitempty"`
	HistogramRequest
}

// BatchRequest represents the arguments for charge_batch.
type BatchRequest struct {
	Dir string `json:"dir,omitempty"`
	HistogramRequest
}

// HistoryRequest represents the arguments for runs_history.
type HistoryRequest struct {
	RunID string `json:"run_id,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Handler implementations

// HandleInit handles the project_init tool call.
func (h *Handlers) HandleInit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := ops.InitInput{}
	if h.root != "" {
		input.ConfigDir = filepath.Join(h.root, config.DirName)
	}
	result, err := ops.Init(h.cfg, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStatus handles the project_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(h.cfg)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExtract handles the pulses_extract tool call.
func (h *Handlers) HandleExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExtractRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Extract(ctx, h.db, h.cfg, ops.ExtractInput{
		SelectionsPath: input.SelectionsPath,
		OutputPath:     input.OutputPath,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLoad handles the pulses_load tool call.
func (h *Handlers) HandleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LoadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.LoadGroup(h.cfg, ops.LoadGroupInput{
		PulsesPath:     input.PulsesPath,
		SelectionsPath: input.SelectionsPath,
		KeepRejected:   input.KeepRejected,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleApprove handles the pulses_approve tool call.
func (h *Handlers) HandleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApproveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	approved := true
	if input.Approved != nil {
		approved = *input.Approved
	}

	result, err := ops.Approve(h.cfg, ops.ApproveInput{
		PulsesPath:     input.PulsesPath,
		SelectionsPath: input.SelectionsPath,
		Indices:        input.Indices,
		Approved:       approved,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDiscover handles the pulses_discover tool call.
func (h *Handlers) HandleDiscover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DiscoverRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Discover(ctx, h.cfg, ops.DiscoverInput{
		Dir:          input.Dir,
		KeepRejected: input.KeepRejected,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSaveApproved handles the pulses_save_approved tool call.
func (h *Handlers) HandleSaveApproved(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveApprovedRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveApproved(ctx, h.db, h.cfg, ops.SaveApprovedInput{
		PulsesPaths: input.PulsesPaths,
		OutputPath:  input.OutputPath,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAnalyze handles the charge_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Analyze(h.db, h.cfg, ops.AnalyzeInput{
		PulsesPath:     input.PulsesPath,
		SelectionsPath: input.SelectionsPath,
		OutputPath:     input.OutputPath,
		Histogram:      input.options(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBatch handles the charge_batch tool call.
func (h *Handlers) HandleBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BatchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.BatchAnalyze(ctx, h.db, h.cfg, ops.BatchAnalyzeInput{
		Dir:       input.Dir,
		Histogram: input.options(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the runs_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		RunID: input.RunID,
		Kind:  input.Kind,
		Limit: input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Details of internal errors are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var pErr *errors.PulseError
	if !stderrors.As(err, &pErr) {
		pErr = &errors.PulseError{Code: errors.ErrInternal, Message: "an internal error occurred"}
	}

	errorObj := map[string]any{
		"code":    pErr.Code,
		"message": pErr.Message,
		"status":  pErr.Status(),
	}
	if pErr.Code != errors.ErrInternal && pErr.Details != nil {
		errorObj["details"] = pErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
