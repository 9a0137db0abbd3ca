// Package web holds the embedded HTML templates.
package web

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page and the shared layout. Pages are addressed by
// file name, e.g. "books_index.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html")
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"year": func(y *int) any {
			if y == nil {
				return ""
			}
			return *y
		},
		"date": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"fieldError": func(errs map[string]string, field string) string {
			return errs[field]
		},
	}
}
