package web

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/ops"
)

// maxApproveBody caps the size of an approve request body.
const maxApproveBody = 1 << 20

// Handlers contains HTTP route handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	metrics  *Metrics
}

// ApproveRequest is the body of POST /api/groups/{file}/approve.
type ApproveRequest struct {
	Indices  []int `json:"indices"`
	Approved *bool `json:"approved,omitempty"` // default: true
}

// HandleStatus handles GET /api/status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Status(h.cfg)
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleRuns handles GET /api/runs: list recorded runs.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(h.db, ops.HistoryInput{
		Kind:  r.URL.Query().Get("kind"),
		Limit: parseIntParam(r, "limit", ops.DefaultHistoryLimit),
	})
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleRun handles GET /api/runs/{id}: one run with its files and analyses.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(h.db, ops.HistoryInput{RunID: r.PathValue("id")})
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGroups handles GET /api/groups: every pulses file of the processed folder.
func (h *Handlers) HandleGroups(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Discover(r.Context(), h.cfg, ops.DiscoverInput{
		KeepRejected: parseBoolParam(r, "keep_rejected"),
	})
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGroup handles GET /api/groups/{file}: one pulses file with its approvals.
func (h *Handlers) HandleGroup(w http.ResponseWriter, r *http.Request) {
	path, err := h.pulsesPath(r.PathValue("file"))
	if err != nil {
		renderJSONError(w, err)
		return
	}
	result, err := ops.LoadGroup(h.cfg, ops.LoadGroupInput{
		PulsesPath:   path,
		KeepRejected: parseBoolParam(r, "keep_rejected"),
	})
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleApprove handles POST /api/groups/{file}/approve.
func (h *Handlers) HandleApprove(w http.ResponseWriter, r *http.Request) {
	path, err := h.pulsesPath(r.PathValue("file"))
	if err != nil {
		renderJSONError(w, err)
		return
	}

	var req ApproveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxApproveBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		renderJSONError(w, errors.NewInvalidRequest(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	result, err := ops.Approve(h.cfg, ops.ApproveInput{
		PulsesPath: path,
		Indices:    req.Indices,
		Approved:   approved,
	})
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleReports handles GET /api/reports.
func (h *Handlers) HandleReports(w http.ResponseWriter, r *http.Request) {
	reports, err := ops.ListReports(h.cfg)
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// HandleReport handles GET /api/reports/{name}.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := ops.ReadReport(h.cfg, r.PathValue("name"))
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, report)
}

// HandleReportsPage handles GET /reports: the report index page.
func (h *Handlers) HandleReportsPage(w http.ResponseWriter, r *http.Request) {
	reports, err := ops.ListReports(h.cfg)
	if err != nil {
		h.renderer.renderError(w, err)
		return
	}
	h.renderer.renderMarkdownPage(w, "Charge reports", reportIndexMarkdown(reports))
}

// HandleReportPage handles GET /reports/{name}: one charge report.
func (h *Handlers) HandleReportPage(w http.ResponseWriter, r *http.Request) {
	report, err := ops.ReadReport(h.cfg, r.PathValue("name"))
	if err != nil {
		h.renderer.renderError(w, err)
		return
	}
	h.renderer.renderMarkdownPage(w, report.FileName, reportMarkdown(report))
}

// pulsesPath maps a file name from the URL to a pulses file of the processed folder.
func (h *Handlers) pulsesPath(name string) (string, error) {
	if err := ops.ValidateFileName(name); err != nil {
		return "", err
	}
	if strings.ContainsAny(name, `/\`) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("file must be a name in the processed folder: %s", name))
	}
	if filepath.Ext(name) != ops.ExtPulses {
		return "", errors.NewInvalidRequest(fmt.Sprintf("file must have %s extension: %s", ops.ExtPulses, name))
	}
	return filepath.Join(h.cfg.ProcessedDir, name), nil
}

// reportIndexMarkdown lists the reports as links.
func reportIndexMarkdown(reports []ops.ReportInfo) string {
	var b bytes.Buffer
	b.WriteString("# Charge reports\n\n")
	if len(reports) == 0 {
		b.WriteString("No reports yet. Run `pulsekit batch` to analyze the processed folder.\n")
		return b.String()
	}
	for _, r := range reports {
		fmt.Fprintf(&b, "- [%s](/reports/%s)\n", escapeMarkdown(r.Name), url.PathEscape(r.Name))
	}
	return b.String()
}

// reportMarkdown renders statistics and histogram of one report, scaled to its unit.
func reportMarkdown(r *ops.ChargeReport) string {
	scale := r.Histogram.Scale
	if scale == 0 {
		scale = 1
	}
	unit := r.UnitLabel
	if unit == "" {
		unit = "C"
	}
	s := r.Statistics
	num := func(v float64) string { return strconv.FormatFloat(v*scale, 'g', 6, 64) }

	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(r.FileName))
	fmt.Fprintf(&b, "%d approved pulses.\n\n", r.TotalPulses)
	fmt.Fprintf(&b, "| Statistic | Charge (%s) |\n|---|---|\n", escapeMarkdown(unit))
	fmt.Fprintf(&b, "| Mean | %s |\n", num(s.Mean))
	fmt.Fprintf(&b, "| Std | %s |\n", num(s.Std))
	fmt.Fprintf(&b, "| Min | %s |\n", num(s.Min))
	fmt.Fprintf(&b, "| Max | %s |\n", num(s.Max))
	fmt.Fprintf(&b, "| Median | %s |\n", num(s.Median))

	if n := len(r.Histogram.Counts); n > 0 && len(r.Histogram.Edges) == n+1 {
		b.WriteString("\n## Histogram\n\n")
		fmt.Fprintf(&b, "| Bin (%s) | Count |\n|---|---|\n", escapeMarkdown(unit))
		for k, c := range r.Histogram.Counts {
			e := r.Histogram.Edges
			fmt.Fprintf(&b, "| %s to %s | %g |\n",
				strconv.FormatFloat(e[k], 'g', 6, 64), strconv.FormatFloat(e[k+1], 'g', 6, 64), c)
		}
	}
	return b.String()
}

// parseIntParam parses an integer query parameter, returning def if missing or invalid.
func parseIntParam(r *http.Request, name string, def int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// parseBoolParam returns true if the query parameter is "true" or "1".
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
