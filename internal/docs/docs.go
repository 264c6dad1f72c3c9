// Package docs serves the OpenAPI description of the TrackFit API.
package docs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	commonhttp "github.com/trackfit/backend/internal/common/http"
)

//go:embed openapi.yaml
var openAPIDocument []byte

type document struct {
	Info struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Version     string `yaml:"version"`
	} `yaml:"info"`
	Paths map[string]map[string]operation `yaml:"paths"`
}

type operation struct {
	Summary  string                `yaml:"summary"`
	Tags     []string              `yaml:"tags"`
	Security []map[string][]string `yaml:"security"`
}

// Endpoint is one row of the rendered index.
type Endpoint struct {
	Method  string
	Path    string
	Summary string
	Tag     string
	Auth    bool
}

type Handler struct {
	json      []byte
	title     string
	version   string
	summary   string
	endpoints []Endpoint
}

// NewHandler parses the embedded document once. A malformed document is a
// build defect, so the error is returned rather than served.
func NewHandler() (*Handler, error) {
	var doc document
	if err := yaml.Unmarshal(openAPIDocument, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(openAPIDocument, &raw); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}

	return &Handler{
		json:      asJSON,
		title:     doc.Info.Title,
		version:   doc.Info.Version,
		summary:   doc.Info.Description,
		endpoints: endpoints(doc),
	}, nil
}

func endpoints(doc document) []Endpoint {
	var out []Endpoint
	for path, ops := range doc.Paths {
		for method, op := range ops {
			ep := Endpoint{
				Method:  strings.ToUpper(method),
				Path:    path,
				Summary: op.Summary,
				Auth:    len(op.Security) > 0,
			}
			if len(op.Tags) > 0 {
				ep.Tag = op.Tags[0]
			}
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Endpoints lists every documented operation ordered by path.
func (h *Handler) Endpoints() []Endpoint {
	return h.endpoints
}

// Routes is meant to be mounted under /docs.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(commonhttp.NotFoundHandler)
	r.MethodNotAllowed(commonhttp.MethodNotAllowedHandler)

	r.Get("/", h.index)
	r.Get("/openapi.yaml", h.yamlDoc)
	r.Get("/openapi.json", h.jsonDoc)
	return r
}

var indexTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Version}}</title>
</head>
<body>
<h1>{{.Title}} <small>{{.Version}}</small></h1>
<p>{{.Summary}}</p>
<p><a href="/docs/openapi.json">openapi.json</a> | <a href="/docs/openapi.yaml">openapi.yaml</a></p>
<table>
<thead><tr><th>Method</th><th>Path</th><th>Tag</th><th>Summary</th></tr></thead>
<tbody>
{{- range .Endpoints}}
<tr><td>{{.Method}}</td><td><code>{{.Path}}</code></td><td>{{.Tag}}</td><td>{{.Summary}}{{if .Auth}} (bearer){{end}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTemplate.Execute(w, map[string]any{
		"Title":     h.title,
		"Version":   h.version,
		"Summary":   h.summary,
		"Endpoints": h.endpoints,
	})
}

func (h *Handler) yamlDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDocument)
}

func (h *Handler) jsonDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.json)
}
