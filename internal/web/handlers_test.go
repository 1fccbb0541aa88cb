package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/ops"
	"github.com/hpungsan/pulsekit/internal/pulse"
)

// setupTest creates a project holding one three-pulse file, analyzed once.
func setupTest(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig().Resolve(root)
	if err := config.EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	database, err := db.Init(filepath.Join(root, config.DirName))
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	pulses := make([]pulse.Pulse, 3)
	for i := range pulses {
		c := float64(i + 1)
		p, err := pulse.NewPulse([]float64{0, 1, 2}, []float64{c, c, c}, []float64{0, 0, 0})
		if err != nil {
			t.Fatalf("NewPulse: %v", err)
		}
		pulses[i] = p
	}
	if err := ops.WritePulses(filepath.Join(cfg.ProcessedDir, "shot_1.txt"), pulses); err != nil {
		t.Fatalf("WritePulses: %v", err)
	}
	if _, err := ops.BatchAnalyze(context.Background(), database, cfg, ops.BatchAnalyzeInput{}); err != nil {
		t.Fatalf("BatchAnalyze: %v", err)
	}

	return NewServer(database, cfg, "test", "127.0.0.1", 0).Handler, cfg
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body: %v\n%s", err, rec.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	payload := decodeBody[map[string]map[string]any](t, rec)
	code, _ := payload["error"]["code"].(string)
	return code
}

func TestRootRedirectsToReports(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(t, h, "GET", "/", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/reports" {
		t.Errorf("Location = %q, want /reports", loc)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(t, h, "GET", "/api/status", "")
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
}

func TestHandleStatus(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(t, h, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decodeBody[ops.StatusOutput](t, rec)
	for _, f := range out.Folders {
		if f.Role == "processed" && f.Files != 1 {
			t.Errorf("processed files = %d, want 1", f.Files)
		}
	}
}

func TestHandleRuns(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(t, h, "GET", "/api/runs?kind=batch", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody[ops.HistoryOutput](t, rec)
	if len(out.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(out.Runs))
	}

	rec = serve(t, h, "GET", "/api/runs/"+out.Runs[0].ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	one := decodeBody[ops.HistoryOutput](t, rec)
	if len(one.Analyses) != 1 || one.Analyses[0].FileName != "shot_1.txt" {
		t.Errorf("analyses = %+v, want one for shot_1.txt", one.Analyses)
	}

	rec = serve(t, h, "GET", "/api/runs/missing", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Errorf("status = %d, want 404 NOT_FOUND", rec.Code)
	}

	rec = serve(t, h, "GET", "/api/runs?kind=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRuns_NoLedger(t *testing.T) {
	cfg := config.DefaultConfig().Resolve(t.TempDir())
	h := NewServer(nil, cfg, "test", "127.0.0.1", 0).Handler

	rec := serve(t, h, "GET", "/api/runs", "")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_REQUEST" {
		t.Errorf("status = %d, want 400 INVALID_REQUEST", rec.Code)
	}
}

func TestApproveThenLoadGroup(t *testing.T) {
	h, cfg := setupTest(t)

	rec := serve(t, h, "POST", "/api/groups/shot_1.txt/approve", `{"indices": [1], "approved": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	approved := decodeBody[ops.ApproveOutput](t, rec)
	if approved.Approved != 2 || len(approved.Changed) != 1 {
		t.Errorf("approve output = %+v", approved)
	}
	if _, err := os.Stat(filepath.Join(cfg.SelectionsDir, "shot_1"+ops.SelectionsSuffix)); err != nil {
		t.Errorf("selections file not written: %v", err)
	}

	rec = serve(t, h, "GET", "/api/groups/shot_1.txt", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	group := decodeBody[ops.LoadGroupOutput](t, rec)
	if group.Loaded != 2 || group.Total != 3 {
		t.Errorf("loaded/total = %d/%d, want 2/3", group.Loaded, group.Total)
	}

	rec = serve(t, h, "GET", "/api/groups?keep_rejected=true", "")
	groups := decodeBody[ops.DiscoverOutput](t, rec)
	if len(groups.Groups) != 1 || groups.Groups[0].Loaded != 3 {
		t.Errorf("discover = %+v, want one group with 3 items", groups.Groups)
	}
}

func TestApprove_BadRequests(t *testing.T) {
	h, _ := setupTest(t)

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"unknown field", "/api/groups/shot_1.txt/approve", `{"index": [1]}`, http.StatusBadRequest},
		{"not json", "/api/groups/shot_1.txt/approve", `nope`, http.StatusBadRequest},
		{"no indices", "/api/groups/shot_1.txt/approve", `{"indices": []}`, http.StatusBadRequest},
		{"out of range", "/api/groups/shot_1.txt/approve", `{"indices": [9]}`, http.StatusBadRequest},
		{"wrong extension", "/api/groups/shot_1.csv/approve", `{"indices": [0]}`, http.StatusBadRequest},
		{"missing file", "/api/groups/other.txt/approve", `{"indices": [0]}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, "POST", tt.target, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestReportsAPI(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(t, h, "GET", "/api/reports", "")
	list := decodeBody[map[string][]ops.ReportInfo](t, rec)
	if len(list["reports"]) != 1 || list["reports"][0].Name != "shot_1" {
		t.Fatalf("reports = %+v, want [shot_1]", list["reports"])
	}

	rec = serve(t, h, "GET", "/api/reports/shot_1", "")
	report := decodeBody[ops.ChargeReport](t, rec)
	if report.TotalPulses != 3 {
		t.Errorf("total pulses = %d, want 3", report.TotalPulses)
	}

	rec = serve(t, h, "GET", "/api/reports/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReportPages(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(t, h, "GET", "/reports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), `href="/reports/shot_1"`) {
		t.Errorf("index does not link the report:\n%s", rec.Body.String())
	}

	rec = serve(t, h, "GET", "/reports/shot_1", "")
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// Charges 2, 4 and 6 C in nC.
	for _, want := range []string{"<table>", "Mean", "4e+09", "Histogram", "shot_1.txt"} {
		if !strings.Contains(body, want) {
			t.Errorf("report page missing %q", want)
		}
	}

	rec = serve(t, h, "GET", "/reports/nope", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Error 404") {
		t.Errorf("status = %d, want 404 error page", rec.Code)
	}
}

func TestReportMarkdown_EscapesFileName(t *testing.T) {
	md := reportMarkdown(&ops.ChargeReport{FileName: "a_<b>|c.txt", UnitLabel: "nC"})
	if strings.Contains(md, "<b>") || strings.Contains(md, "a_<") {
		t.Errorf("file name not escaped:\n%s", md)
	}

	html := string(NewRenderer("test").renderMarkdown(md))
	if strings.Contains(html, "<b>") {
		t.Errorf("raw HTML leaked into page:\n%s", html)
	}
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/runs?limit=notanumber", nil)
	if got := parseIntParam(req, "limit", 20); got != 20 {
		t.Errorf("parseIntParam = %d, want fallback 20", got)
	}
	req = httptest.NewRequest("GET", "/api/runs?limit=5", nil)
	if got := parseIntParam(req, "limit", 20); got != 5 {
		t.Errorf("parseIntParam = %d, want 5", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := setupTest(t)

	serve(t, h, "GET", "/api/status", "")
	serve(t, h, "GET", "/api/reports/nope", "")

	rec := serve(t, h, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`pulsekit_http_requests_total{code="200",route="GET /api/status"} 1`,
		`pulsekit_http_requests_total{code="404",route="GET /api/reports/{name}"} 1`,
		"pulsekit_http_request_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
