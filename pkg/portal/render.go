package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/observability"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"home", "login", "dashboard", "info", "users", "loading"}

// page is the data every template renders from
type page struct {
	Title      string
	Identity   *identity.Identity
	Landing    string
	Error      string
	Message    string
	Refresh    int
	Username   string
	Tools      []Tool
	Users      []identity.Identity
	Paragraphs []string
}

type renderer struct {
	templates map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{"join": strings.Join}
	r := &renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// execute renders the named page into memory so a template error never
// leaves a half-written response
func (r *renderer) execute(req *http.Request, name string, data page) ([]byte, bool) {
	t, ok := r.templates[name]
	if !ok {
		observability.FromContext(req.Context()).WithField("page", name).Error("unknown page")
		return nil, false
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		observability.FromContext(req.Context()).WithError(err).WithField("page", name).Error("template render failed")
		return nil, false
	}
	return buf.Bytes(), true
}

func (r *renderer) render(w http.ResponseWriter, req *http.Request, status int, name string, data page) {
	body, ok := r.execute(req, name, data)
	if !ok {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
