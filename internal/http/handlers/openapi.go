package handlers

import (
	"bytes"
	_ "embed"
	"net/http"
	"time"
)

//go:embed openapi.json
var openAPISpec []byte

// Redoc page for the job API; the bundle is pinned.
const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8" />
<title>StoryForge job API</title>
<meta name="viewport" content="width=device-width, initial-scale=1" />
<style>body{margin:0}redoc{display:block;height:100vh}</style>
</head>
<body>
<redoc spec-url="/openapi.json" hide-download-button></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
</body>
</html>`

var startedAt = time.Now()

func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, "openapi.json", startedAt, bytes.NewReader(openAPISpec))
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsPage))
}
