// Package webui provides the embedded composition form.
package webui

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

var index = template.Must(template.ParseFS(staticFS, "static/index.html"))

// Page is the data the form is rendered with.
type Page struct {
	Models      []string
	Instruments []string
	Ensembles   []string
	Defaults    Defaults
}

type Defaults struct {
	Length      int
	Temperature float64
	BPM         float64
}

// Render writes the form page.
func Render(w io.Writer, p Page) error {
	return index.Execute(w, p)
}

// StaticFS returns an http.FileSystem for the embedded static files.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The embed path is fixed at compile time.
		panic(err)
	}
	return http.FS(sub)
}
