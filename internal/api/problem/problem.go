// Package problem renders errors as RFC 7807 problem details. Type URIs are
// slugs under the project error namespace so clients can switch on them
// without parsing titles.
package problem

import (
	"encoding/json"
	"net/http"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.shopledger.app/"
)

// Details is the RFC 7807 body. Instance and RequestID are omitted when
// unknown rather than sent empty.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Type expands an error slug into its full type URI.
func Type(slug string) string {
	return baseTypeURL + slug
}

// Write responds with a problem document for the given request. An empty
// title falls back to the standard status text and an empty type to
// about:blank, per the RFC.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	d := Details{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if d.Title == "" {
		d.Title = http.StatusText(status)
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get("X-Trace-ID")
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get("X-Trace-ID")
	}
	d.write(w)
}

func (d Details) write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
