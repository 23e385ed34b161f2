package renderer

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/damacus/iron-gallery/internal/utils"
	"github.com/labstack/echo/v4"
)

//go:embed views
var views embed.FS

//go:embed assets
var assets embed.FS

// Assets returns the static files served under /assets
func Assets() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// Funcs are the helpers available to every template
var Funcs = template.FuncMap{
	"displaySize": utils.FormatFileSize,
	"ago":         utils.FormatAgo,
	"count":       utils.FormatCount,
}

// TemplateRenderer implements echo.Renderer
type TemplateRenderer struct {
	Templates map[string]*template.Template
}

// New creates a new TemplateRenderer with pre-parsed templates
func New() *TemplateRenderer {
	r := &TemplateRenderer{
		Templates: make(map[string]*template.Template),
	}
	r.parseTemplates()
	return r
}

func (t *TemplateRenderer) parseTemplates() {
	// Helper to parse layout + page + shared partials
	parse := func(name, pageFile string) {
		t.Templates[name] = template.Must(template.New(name).Funcs(Funcs).ParseFS(views,
			"views/layouts/base.html",
			"views/partials/image_card.html",
			"views/pages/"+pageFile,
		))
	}

	parse("gallery", "gallery.html")
	parse("config", "config.html")
	parse("error", "error.html")

	// Partials
	partial := func(name string) {
		t.Templates[name] = template.Must(template.New(name).Funcs(Funcs).ParseFS(views, "views/partials/"+name+".html"))
	}
	partial("image_card")
	partial("lightbox")

	// Error fragment
	t.Templates["config_error"] = template.Must(template.New("config_error").Parse(`<p class="error">{{.}}</p>`))
}

// selfExecutingTemplates lists templates that execute their own named block instead of "base"
var selfExecutingTemplates = map[string]bool{
	"image_card":   true,
	"lightbox":     true,
	"config_error": true,
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.Templates[name]
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "Template not found: "+name)
	}

	// Templates that define their own named block execute that block directly
	if selfExecutingTemplates[name] {
		return tmpl.ExecuteTemplate(w, name, data)
	}
	// All other templates (pages with layout) execute the "base" block
	return tmpl.ExecuteTemplate(w, "base", data)
}
