// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus reads the cleaned bibliographic corpus table.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/citegraph/internal/ident"
	"github.com/pdiddy/citegraph/pkg/types"
)

// Row is one corpus record with a canonical identifier.
type Row struct {
	ID         string
	Year       int // 0 when unknown
	Title      string
	References []string
}

// Stats summarizes what Load kept and dropped.
type Stats struct {
	Rows         int // data rows read
	Kept         int
	NoIdentifier int // dropped: identifier did not normalize
	BadRefs      int // kept with no references: malformed list
}

// Load reads the corpus at cfg.Path. Rows whose identifier does not
// normalize are dropped. A malformed reference list is treated as empty and
// counted in Stats.BadRefs.
func Load(cfg types.CorpusConfig, log zerolog.Logger) ([]Row, Stats, error) {
	cfg = cfg.WithDefaults()
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	return Read(f, cfg, log)
}

// Read is Load over an arbitrary reader. cfg.Path is only used in messages.
func Read(r io.Reader, cfg types.CorpusConfig, log zerolog.Logger) ([]Row, Stats, error) {
	cfg = cfg.WithDefaults()
	var stats Stats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("corpus %s: empty file", cfg.Path)
		}
		return nil, stats, fmt.Errorf("reading corpus header: %w", err)
	}
	cols := indexColumns(header)

	idIdx, ok := cols[cfg.IDColumn]
	if !ok {
		return nil, stats, fmt.Errorf("corpus %s: missing column %q", cfg.Path, cfg.IDColumn)
	}
	yearIdx, ok := cols[cfg.YearColumn]
	if !ok {
		return nil, stats, fmt.Errorf("corpus %s: missing column %q", cfg.Path, cfg.YearColumn)
	}
	refsIdx, hasRefs := cols[cfg.RefsColumn]
	titleIdx, hasTitle := cols[cfg.TitleColumn]

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading corpus line %d: %w", line, err)
		}
		stats.Rows++

		id, ok := ident.Normalize(field(rec, idIdx))
		if !ok {
			stats.NoIdentifier++
			continue
		}
		row := Row{ID: id, Year: ParseYear(field(rec, yearIdx))}
		if hasTitle {
			row.Title = field(rec, titleIdx)
		}
		if hasRefs {
			refs, err := ident.ParseReferences(field(rec, refsIdx))
			if err != nil {
				// Reference completeness is best effort: keep the row, drop its refs.
				stats.BadRefs++
				log.Debug().Str("work_id", id).Int("line", line).Err(err).Msg("ignoring reference list")
			}
			row.References = refs
		}
		rows = append(rows, row)
	}
	stats.Kept = len(rows)
	return rows, stats, nil
}

// ReadTitles returns the raw title column of the corpus at cfg.Path, one
// entry per data row, without identifier filtering.
func ReadTitles(cfg types.CorpusConfig) ([]string, error) {
	cfg = cfg.WithDefaults()
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading corpus header: %w", err)
	}
	idx, ok := indexColumns(header)[cfg.TitleColumn]
	if !ok {
		return nil, fmt.Errorf("corpus %s: missing column %q", cfg.Path, cfg.TitleColumn)
	}
	var titles []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return titles, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading corpus: %w", err)
		}
		titles = append(titles, field(rec, idx))
	}
}

// ParseYear reads a publication year written as an integer or an integral
// float ("2001", "2001.0"). Anything else, including non-positive values,
// is unknown (0).
func ParseYear(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f != math.Trunc(f) {
		return 0
	}
	return int(f)
}

// HarvestOrder returns the distinct identifiers in reverse corpus order,
// keeping the first occurrence of each in that order.
func HarvestOrder(rows []Row) []string {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		id := rows[i].ID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// PubYears maps each identifier to the year of its first corpus row with a
// known year.
func PubYears(rows []Row) map[string]int {
	years := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.Year == 0 {
			continue
		}
		if _, ok := years[r.ID]; !ok {
			years[r.ID] = r.Year
		}
	}
	return years
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
