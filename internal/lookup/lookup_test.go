// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citegraph/internal/httputil"
	"github.com/pdiddy/citegraph/pkg/types"
)

func newTestResolver(baseURL string) *Resolver {
	client := httputil.NewClient(types.HTTPConfig{
		BaseURL:           baseURL,
		Delay:             time.Millisecond,
		BackoffBase:       time.Millisecond,
		RateLimitCooldown: time.Millisecond,
	}, zerolog.Nop())
	return NewResolver(client, zerolog.Nop())
}

// searchServer answers title searches from a fixed table keyed by filter.
func searchServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/works", r.URL.Path)
		switch r.URL.Query().Get("filter") {
		case "title.search:Graph Drawing":
			w.Write([]byte(`{"results": [
			  {"id": "https://openalex.org/W1", "doi": "https://doi.org/10.1/gd",
			   "cited_by_count": 12, "publication_year": 1999,
			   "referenced_works": ["https://openalex.org/W2"]},
			  {"id": "https://openalex.org/W99"}]}`))
		case "title.search:Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"results": []}`))
		}
	}))
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("https://api.example.org/", "Edges, Nodes  and Paths", "")
	assert.Equal(t, "https://api.example.org/works?filter=title.search%3AEdges+Nodes+and+Paths", got)
	assert.Contains(t, SearchURL("https://api.example.org", "X", "me@example.org"), "mailto=me%40example.org")
}

func TestSearch(t *testing.T) {
	var calls int32
	ts := searchServer(t, &calls)
	defer ts.Close()
	r := newTestResolver(ts.URL)

	m, err := r.Search(context.Background(), "Graph Drawing")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "https://openalex.org/W1", m.OpenAlexID)
	assert.Equal(t, []string{"Graph Drawing", "https://openalex.org/W1", "https://doi.org/10.1/gd", "12", "1999",
		`["https://openalex.org/W2"]`}, m.Record())

	m, err = r.Search(context.Background(), "Unknown")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRun_WritesRowsAndResumes(t *testing.T) {
	var calls int32
	ts := searchServer(t, &calls)
	defer ts.Close()

	dir := t.TempDir()
	cfg := types.LookupConfig{
		OutputPath:   filepath.Join(dir, "out", "with_openalex.csv"),
		ProgressPath: filepath.Join(dir, "progress.json"),
	}
	titles := []string{"Graph Drawing", "Unknown", "Broken"}

	r := newTestResolver(ts.URL)
	res, err := r.Run(context.Background(), titles, cfg)
	require.NoError(t, err)
	assert.Equal(t, Result{Found: 1, NotFound: 1, Failed: 1}, res)
	assert.Equal(t, 3, res.Total())

	out, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Graph Drawing,https://openalex.org/W1,"))
	assert.Equal(t, "Unknown,,,,,", lines[2])
	assert.Equal(t, "Broken,,,,,", lines[3])

	p, err := LoadProgress(cfg.ProgressPath)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Index)

	// A finished run does nothing; a longer title list resumes at the end.
	before := atomic.LoadInt32(&calls)
	res, err = r.Run(context.Background(), titles, cfg)
	require.NoError(t, err)
	assert.Equal(t, Result{Start: 3}, res)
	assert.Equal(t, before, atomic.LoadInt32(&calls))

	res, err = r.Run(context.Background(), append(titles, "Another"), cfg)
	require.NoError(t, err)
	assert.Equal(t, Result{Start: 3, NotFound: 1}, res)
	assert.Equal(t, before+1, atomic.LoadInt32(&calls))
}

func TestLoadProgress(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadProgress(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Zero(t, p.Index)

	path := filepath.Join(dir, "progress.json")
	require.NoError(t, SaveProgress(path, Progress{Index: 42}))
	p, err = LoadProgress(path)
	require.NoError(t, err)
	assert.Equal(t, 42, p.Index)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadProgress(path)
	assert.Error(t, err)
}
