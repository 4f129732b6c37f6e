// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is one API variant that can yield a citation timeline.
type Endpoint struct {
	// Name labels metrics and logs.
	Name string

	// Path is a format string taking the work identifier.
	Path string

	// Query holds fixed query parameters.
	Query url.Values
}

// Endpoints lists the variants in priority order: grouped citation counts,
// the timeline endpoint, then the work record itself.
var Endpoints = []Endpoint{
	{Name: "citations_by_year", Path: "/works/%s/citations", Query: url.Values{"group_by": {"year"}}},
	{Name: "citation_timeline", Path: "/works/%s/citation-timeline"},
	{Name: "work", Path: "/works/%s"},
}

// URL renders the endpoint for id against base. A non-empty email is sent
// as the mailto parameter.
func (e Endpoint) URL(base, id, email string) string {
	u := strings.TrimRight(base, "/") + fmt.Sprintf(e.Path, url.PathEscape(id))
	q := url.Values{}
	for k, vs := range e.Query {
		q[k] = append([]string(nil), vs...)
	}
	if email != "" {
		q.Set("mailto", email)
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
