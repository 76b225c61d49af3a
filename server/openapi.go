package server

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
)

const (
	openAPIPath    = "/openapi.yaml"
	playgroundPath = "/graphql"
)

//go:embed openapi.yaml
var openAPISpec []byte

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>{{.Title}}</title>
  </head>
  <body>
    <noscript>
      The reference below needs JavaScript.
      Fetch the raw document at <a href="{{.SpecURL}}">{{.SpecURL}}</a>,
      or query the API from the <a href="{{.PlaygroundURL}}">GraphQL playground</a>.
    </noscript>
    <redoc spec-url="{{.SpecURL}}" expand-responses="200" path-in-middle-panel></redoc>
    <script src="https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"></script>
  </body>
</html>`))

// docsPage holds the values rendered into the reference page
type docsPage struct {
	Title         string
	SpecURL       string
	PlaygroundURL string
}

// OpenAPI serves the embedded OpenAPI document
func (s *Server) OpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(openAPISpec) //nolint:errcheck // Fine to ignore
}

// Redoc serves the rendered API reference for the OpenAPI document
func (s *Server) Redoc(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer

	page := docsPage{
		Title:         "p2prates API reference",
		SpecURL:       openAPIPath,
		PlaygroundURL: playgroundPath,
	}

	if err := docsTemplate.Execute(&buf, page); err != nil {
		s.logger.Error("unable to render API reference", "err", err)
		http.Error(w, "unable to render API reference", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(buf.Bytes()) //nolint:errcheck // Fine to ignore
}
