package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var pathParam = regexp.MustCompile(`\{(\w+)\}`)

// OpenAPI builds the OpenAPI 3 document describing the HTTP API.
func OpenAPI(version string) map[string]any {
	return (&App{version: version}).openAPI()
}

func (a *App) openAPI() map[string]any {
	paths := map[string]any{}
	for _, rt := range a.routeTable() {
		item, _ := paths[rt.path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[rt.path] = item
		}
		op := map[string]any{
			"summary":     rt.summary,
			"tags":        []string{rt.tag},
			"operationId": operationID(rt.method, rt.path),
			"responses":   responsesFor(rt),
		}
		if rt.access.auth {
			op["security"] = []map[string][]string{{"bearerAuth": {}}}
			op["x-access"] = rt.access.String()
		}
		if params := pathParams(rt.path); len(params) > 0 {
			op["parameters"] = params
		}
		if rt.method == http.MethodPost || rt.method == http.MethodPut {
			op["requestBody"] = map[string]any{
				"content": map[string]any{"application/json": map[string]any{"schema": map[string]string{"type": "object"}}},
			}
		}
		item[strings.ToLower(rt.method)] = op
	}
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "User Management API",
			"version": a.version,
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}

func responsesFor(rt route) map[string]any {
	out := map[string]any{
		strconv.Itoa(rt.status): map[string]string{"description": http.StatusText(rt.status)},
	}
	if rt.method != http.MethodGet {
		out["400"] = map[string]string{"description": "Validation error"}
	}
	if rt.access.auth {
		out["401"] = map[string]string{"description": msgNoCredentials}
		out["403"] = map[string]string{"description": msgNoPermission}
	}
	if strings.Contains(rt.path, "{") {
		out["404"] = map[string]string{"description": "Not found"}
	}
	return out
}

func pathParams(path string) []map[string]any {
	var out []map[string]any
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		out = append(out, map[string]any{
			"name":     m[1],
			"in":       "path",
			"required": true,
			"schema":   map[string]string{"type": "string"},
		})
	}
	return out
}

// operationID turns "PUT /api/users/{id}/" into "putUsersId".
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, part := range strings.FieldsFunc(strings.TrimPrefix(path, "/api"), func(r rune) bool {
		return r == '/' || r == '-' || r == '{' || r == '}'
	}) {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

// MarshalOpenAPI encodes doc as "json" or "yaml".
func MarshalOpenAPI(doc map[string]any, format string) ([]byte, error) {
	if format == "yaml" || format == "yml" {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (a *App) handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.openAPI())
}

func (a *App) handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	out, err := MarshalOpenAPI(a.openAPI(), "yaml")
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(out)
}
