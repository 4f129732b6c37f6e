// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package timeline turns harvested API payloads into per-year citation counts.
package timeline

import (
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/citegraph/pkg/types"
)

// Payload keys for the two known response shapes.
const (
	countsByYearKey = "counts_by_year"
	groupByKey      = "group_by"
)

// Shape identifies which payload layout a timeline was read from.
type Shape string

const (
	ShapeCountsByYear Shape = "counts_by_year"
	ShapeGroupBy      Shape = "group_by"
	ShapeUnknown      Shape = "unknown"
)

// Extract returns the citation timeline contained in payload. pubYear is the
// work's publication year; 0 disables the lower bound. Entries whose year or
// count cannot be read as an integer, whose year precedes pubYear, or whose
// year falls outside [types.YearMin, types.YearMax] are dropped. An
// unrecognized payload yields an empty timeline.
func Extract(payload []byte, pubYear int) types.Timeline {
	tl, _ := ExtractShape(payload, pubYear)
	return tl
}

// ExtractShape is Extract that also reports the payload shape it recognized.
func ExtractShape(payload []byte, pubYear int) (types.Timeline, Shape) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return types.Timeline{}, ShapeUnknown
	}

	if entries, ok := doc[countsByYearKey]; ok {
		return collect(entries, pubYear, []string{"year"}), ShapeCountsByYear
	}
	if entries, ok := doc[groupByKey]; ok {
		return collect(entries, pubYear, []string{"key", "year"}), ShapeGroupBy
	}
	return types.Timeline{}, ShapeUnknown
}

// collect reads year/count pairs from a list of objects. yearKeys are
// consulted in order; the first non-empty value is used.
func collect(entries any, pubYear int, yearKeys []string) types.Timeline {
	tl := types.Timeline{}
	list, ok := entries.([]any)
	if !ok {
		return tl
	}
	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		year, ok := toInt(firstSet(entry, yearKeys...))
		if !ok {
			continue
		}
		count := 0
		if v := firstSet(entry, "cited_by_count", "count"); v != nil {
			if count, ok = toInt(v); !ok {
				continue
			}
		}
		if pubYear > 0 && year < pubYear {
			continue
		}
		if !types.InYearRange(year) {
			continue
		}
		tl[year] = count
	}
	return tl
}

// firstSet returns the first value under keys that is present and not
// empty (nil, zero, or ""). It returns nil when none is.
func firstSet(entry map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := entry[k]
		if !ok || isEmpty(v) {
			continue
		}
		return v
	}
	return nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return x == 0
	case string:
		return x == ""
	case bool:
		return !x
	}
	return false
}

// toInt coerces a decoded JSON value to an integer. Numbers are truncated,
// numeric strings are parsed; everything else fails.
func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Row expands a timeline into one count per year of the fixed range, in
// ascending year order, with 0 for missing years.
func Row(tl types.Timeline) []int {
	years := types.YearRange()
	row := make([]int, len(years))
	for i, y := range years {
		row[i] = tl[y]
	}
	return row
}
