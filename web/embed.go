package web

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var content embed.FS

// IndexHTML returns the landing page
func IndexHTML() ([]byte, error) {
	return fs.ReadFile(content, "static/index.html")
}
