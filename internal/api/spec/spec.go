// Package spec exposes the API description. The document is compiled into
// the binary so the served /openapi.yaml never drifts from the deployed code.
package spec

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var document []byte

// Handler serves the embedded OpenAPI document.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(document)
	}
}
