package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/agrilink/usermgmt/internal/logger"
)

//go:embed templates/docs.html
var templatesFS embed.FS

var docsPage = template.Must(template.ParseFS(templatesFS, "templates/docs.html"))

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts markdown text to HTML (safe to inject as template.HTML).
func RenderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		logger.Warn("render markdown: %v", err)
	}
	return template.HTML(buf.String())
}

// docsMarkdown lists every route with its access rule as a markdown document.
func (a *App) docsMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# User Management API\n\nVersion `%s`. ", a.version)
	b.WriteString("Authenticate with `Authorization: Bearer <access>` using the token from `POST /api/auth/login/`. ")
	b.WriteString("Machine readable: [openapi.json](/openapi.json), [openapi.yaml](/openapi.yaml).\n")

	tag := ""
	for _, rt := range a.routeTable() {
		if rt.tag != tag {
			tag = rt.tag
			fmt.Fprintf(&b, "\n## %s\n\n| Method | Path | Access | Description |\n|---|---|---|---|\n", tag)
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", rt.method, rt.path, rt.access, rt.summary)
	}
	return b.String()
}

func (a *App) handleDocs(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Version string
		Notice  template.HTML
		Body    template.HTML
	}{Version: a.version, Body: RenderMarkdown(a.docsMarkdown())}

	if s, err := a.svc.Settings(); err == nil && s.Notice != "" {
		data.Notice = RenderMarkdown(s.Notice)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := docsPage.Execute(w, data); err != nil {
		logger.Error("render docs: %v", err)
	}
}
