package app

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/render"
)

const (
	templateRoot    = "templates"
	htmlContentType = "text/html; charset=utf-8"
)

// TemplateRenderer is the gin HTML renderer for the dashboard.
//
// Files under templates/layouts and templates/partials form a base set. Every
// other .html file is a page, parsed onto its own clone of the base set and
// addressed by its path below templates/, for example "dashboard/list.html".
// Pages invoke {{ template "base" . }} and fill the "title" and "content"
// blocks; fragment pages render a partial directly.
//
// In debug mode the whole set is rebuilt on every render so template edits
// show up without a restart.
type TemplateRenderer struct {
	fs      fs.FS
	funcMap template.FuncMap
	debug   bool
	pages   map[string]*template.Template
}

var _ render.HTMLRender = (*TemplateRenderer)(nil)

// NewTemplateRenderer creates a renderer reading from fsys, which must contain
// the templates directory. Outside debug mode every page is parsed up front,
// so a broken template fails startup.
func NewTemplateRenderer(fsys fs.FS, debug bool) (*TemplateRenderer, error) {
	r := &TemplateRenderer{
		fs:      fsys,
		funcMap: templateFuncMap(),
		debug:   debug,
	}
	if debug {
		return r, nil
	}

	pages, err := r.parse()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.pages = pages
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *TemplateRenderer) Instance(name string, data any) render.Render {
	pages := r.pages
	if r.debug {
		var err error
		if pages, err = r.parse(); err != nil {
			return &HTMLInstance{Name: name, err: err}
		}
	}
	return &HTMLInstance{Template: pages[name], Name: name, Data: data}
}

// Pages lists the page names the renderer can serve, sorted.
func (r *TemplateRenderer) Pages() ([]string, error) {
	pages := r.pages
	if r.debug {
		var err error
		if pages, err = r.parse(); err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *TemplateRenderer) parse() (map[string]*template.Template, error) {
	base, err := r.parseBase()
	if err != nil {
		return nil, err
	}
	files, err := r.pageFiles()
	if err != nil {
		return nil, fmt.Errorf("discover pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimPrefix(file, templateRoot+"/")
		page, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base for %s: %w", name, err)
		}
		if err := parseFile(page, r.fs, file, name); err != nil {
			return nil, err
		}
		pages[name] = page
	}
	return pages, nil
}

func (r *TemplateRenderer) parseBase() (*template.Template, error) {
	base := template.New("").Funcs(r.funcMap)
	for _, dir := range []string{"layouts", "partials"} {
		files, err := fs.Glob(r.fs, templateRoot+"/"+dir+"/*.html")
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		for _, file := range files {
			if err := parseFile(base, r.fs, file, file); err != nil {
				return nil, err
			}
		}
	}
	return base, nil
}

// pageFiles returns every template outside layouts/ and partials/.
func (r *TemplateRenderer) pageFiles() ([]string, error) {
	var files []string
	err := fs.WalkDir(r.fs, templateRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		rel := strings.TrimPrefix(path, templateRoot+"/")
		if strings.HasPrefix(rel, "layouts/") || strings.HasPrefix(rel, "partials/") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func parseFile(set *template.Template, fsys fs.FS, file, name string) error {
	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if _, err := set.New(name).Parse(string(content)); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	return nil
}

func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
		// plural renders a count with its noun, "1 record" or "3 records".
		"plural": func(n int, noun string) string {
			if n != 1 {
				noun += "s"
			}
			return strconv.Itoa(n) + " " + noun
		},
	}
}

// HTMLInstance executes one page template.
type HTMLInstance struct {
	Template *template.Template
	Name     string
	Data     any
	err      error
}

// Render writes the page to w.
func (h *HTMLInstance) Render(w http.ResponseWriter) error {
	h.WriteContentType(w)
	if h.err != nil {
		return h.err
	}
	if h.Template == nil {
		return fmt.Errorf("template %q not found", h.Name)
	}
	return h.Template.ExecuteTemplate(w, h.Name, h.Data)
}

// WriteContentType sets an HTML content type unless one is already set.
func (h *HTMLInstance) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if len(header["Content-Type"]) == 0 {
		header["Content-Type"] = []string{htmlContentType}
	}
}
