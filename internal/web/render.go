package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/pulsekit/internal/errors"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · pulsekit</title>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.75rem; text-align: right; }
th:first-child, td:first-child { text-align: left; }
footer { margin-top: 3rem; color: #888; font-size: 0.8rem; }
</style>
</head>
<body>
<nav><a href="/reports">Reports</a></nav>
<main>{{.Body}}</main>
<footer>pulsekit {{.Version}}</footer>
</body>
</html>
`))

// PageData is the template data of every HTML page.
type PageData struct {
	Title   string
	Version string
	Body    template.HTML
}

// Renderer renders HTML pages from markdown.
type Renderer struct {
	md      goldmark.Markdown
	version string
}

// NewRenderer creates a Renderer. Raw HTML in markdown is not passed through.
func NewRenderer(version string) *Renderer {
	return &Renderer{
		md:      goldmark.New(goldmark.WithExtensions(extension.Table)),
		version: version,
	}
}

// renderMarkdownPage converts md to HTML and writes it as a full page.
func (r *Renderer) renderMarkdownPage(w http.ResponseWriter, title, md string) {
	r.renderPageStatus(w, http.StatusOK, title, r.renderMarkdown(md))
}

func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, title string, body template.HTML) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, PageData{Title: title, Version: r.version, Body: body}); err != nil {
		slog.Error("template execution error", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderMarkdown converts markdown text to HTML using goldmark.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// renderError renders an error page.
func (r *Renderer) renderError(w http.ResponseWriter, err error) {
	pErr := asPulseError(err)
	status := pErr.Status()
	body := fmt.Sprintf("<h1>Error %d</h1>\n<p>%s</p>\n", status, template.HTMLEscapeString(pErr.Message))
	r.renderPageStatus(w, status, fmt.Sprintf("Error %d", status), template.HTML(body))
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderJSONError writes {"error": {code, message, status}}.
func renderJSONError(w http.ResponseWriter, err error) {
	pErr := asPulseError(err)
	renderJSON(w, pErr.Status(), map[string]any{
		"error": map[string]any{
			"code":    string(pErr.Code),
			"message": pErr.Message,
			"status":  pErr.Status(),
		},
	})
}

func asPulseError(err error) *errors.PulseError {
	var pErr *errors.PulseError
	if stderrors.As(err, &pErr) {
		return pErr
	}
	slog.Error("unexpected error", "error", err)
	return &errors.PulseError{Code: errors.ErrInternal, Message: "an internal error occurred"}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
	"|", `\|`, "#", `\#`, "<", `\<`, ">", `\>`,
)

// escapeMarkdown escapes characters that markdown would interpret in s.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
