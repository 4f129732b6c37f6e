// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lookup resolves corpus titles to scholarly-graph works and appends
// the matches to a resumable CSV.
package lookup

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/citegraph/internal/httputil"
	"github.com/pdiddy/citegraph/pkg/types"
)

// Header is the column layout of the output CSV.
var Header = []string{"title", "openalex_id", "doi", "cited_by_count", "publication_year", "referenced_works"}

// Match is the first search result for a title.
type Match struct {
	Title           string
	OpenAlexID      string
	DOI             string
	CitedByCount    *int
	PublicationYear *int
	ReferencedWorks []string
}

// Record renders m as an output row.
func (m Match) Record() []string {
	refs := ""
	if m.ReferencedWorks != nil {
		b, _ := json.Marshal(m.ReferencedWorks)
		refs = string(b)
	}
	return []string{m.Title, m.OpenAlexID, m.DOI, optInt(m.CitedByCount), optInt(m.PublicationYear), refs}
}

type searchResponse struct {
	Results []struct {
		ID              string   `json:"id"`
		DOI             string   `json:"doi"`
		CitedByCount    *int     `json:"cited_by_count"`
		PublicationYear *int     `json:"publication_year"`
		ReferencedWorks []string `json:"referenced_works"`
	} `json:"results"`
}

// Resolver searches works by title.
type Resolver struct {
	client *httputil.Client
	log    zerolog.Logger
}

// NewResolver returns a Resolver using client for every request.
func NewResolver(client *httputil.Client, log zerolog.Logger) *Resolver {
	return &Resolver{client: client, log: log}
}

// SearchURL returns the title search request for title.
func SearchURL(base, title, email string) string {
	// Commas separate filters in the query language.
	clean := strings.Join(strings.Fields(strings.ReplaceAll(title, ",", " ")), " ")
	q := url.Values{"filter": {"title.search:" + clean}}
	if email != "" {
		q.Set("mailto", email)
	}
	return strings.TrimRight(base, "/") + "/works?" + q.Encode()
}

// Search returns the first result for title, or nil when there is none.
func (r *Resolver) Search(ctx context.Context, title string) (*Match, error) {
	cfg := r.client.Config()
	body, err := r.client.Get(ctx, SearchURL(cfg.BaseURL, title, cfg.Email), nil)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	w := resp.Results[0]
	return &Match{
		Title:           title,
		OpenAlexID:      w.ID,
		DOI:             w.DOI,
		CitedByCount:    w.CitedByCount,
		PublicationYear: w.PublicationYear,
		ReferencedWorks: w.ReferencedWorks,
	}, nil
}

// Result holds the outcome of a lookup run.
type Result struct {
	Start    int // index resumed from
	Found    int
	NotFound int
	Failed   int // request errors, written as empty rows
}

// Total returns the number of titles processed in this run.
func (r Result) Total() int {
	return r.Found + r.NotFound + r.Failed
}

// Run resolves titles starting at the index stored in cfg.ProgressPath. Each
// title produces exactly one appended row, followed by a progress update,
// so an interrupted run resumes at the next unwritten title.
func (r *Resolver) Run(ctx context.Context, titles []string, cfg types.LookupConfig) (Result, error) {
	progress, err := LoadProgress(cfg.ProgressPath)
	if err != nil {
		return Result{}, err
	}
	res := Result{Start: progress.Index}
	if progress.Index >= len(titles) {
		r.log.Info().Int("index", progress.Index).Int("titles", len(titles)).Msg("lookup already complete")
		return res, nil
	}
	if err := ensureHeader(cfg.OutputPath); err != nil {
		return res, err
	}

	for i := progress.Index; i < len(titles); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		title := titles[i]
		log := r.log.With().Int("row", i+1).Str("title", title).Logger()

		match, err := r.Search(ctx, title)
		switch {
		case err != nil && ctx.Err() != nil:
			return res, ctx.Err()
		case err != nil:
			log.Warn().Err(err).Msg("lookup failed")
			res.Failed++
			match = &Match{Title: title}
		case match == nil:
			log.Info().Msg("not found")
			res.NotFound++
			match = &Match{Title: title}
		default:
			log.Info().Str("openalex_id", match.OpenAlexID).Str("doi", match.DOI).Msg("found")
			res.Found++
		}

		if err := appendRow(cfg.OutputPath, match.Record()); err != nil {
			return res, err
		}
		if err := SaveProgress(cfg.ProgressPath, Progress{Index: i + 1}); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Progress is the resume checkpoint: the index of the next title.
type Progress struct {
	Index int `json:"index"`
}

// LoadProgress reads path; a missing file starts at 0.
func LoadProgress(path string) (Progress, error) {
	var p Progress
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("reading progress: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing progress %s: %w", path, err)
	}
	if p.Index < 0 {
		p.Index = 0
	}
	return p, nil
}

// SaveProgress replaces path with p through a temp file and rename.
func SaveProgress(path string, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing progress: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func ensureHeader(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return appendRow(path, Header)
}

func appendRow(path string, rec []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Write(rec)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return f.Close()
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
