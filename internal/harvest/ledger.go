// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/citegraph/internal/ident"
	"github.com/pdiddy/citegraph/internal/timeline"
	"github.com/pdiddy/citegraph/pkg/types"
)

// File names inside the harvest output directory.
const (
	WideTableFile = "citation_timeline_wide.csv"
	FailureFile   = "failed_records.csv"
	RawLogFile    = "citation_timeline_raw.jsonl"
)

const (
	idColumn     = "openalex_id"
	reasonColumn = "reason"
)

// ErrLedgerConflict is returned when an identifier would end up both
// completed and failed, or would be recorded twice.
var ErrLedgerConflict = errors.New("ledger conflict")

// Ledger is the persisted harvest state: the completed set, backed by the
// wide checkpoint table, and the permanently failed set, backed by the
// append-only failure ledger. Entries are only ever added.
type Ledger struct {
	widePath string
	failPath string

	rows   map[string][]int // completed id -> counts aligned with types.YearRange
	failed map[string]string
	dirty  bool
}

// Load reads the checkpoint table and failure ledger from dir. Missing files
// yield an empty ledger. An id present in both files is treated as completed.
func Load(dir string) (*Ledger, error) {
	l := &Ledger{
		widePath: filepath.Join(dir, WideTableFile),
		failPath: filepath.Join(dir, FailureFile),
		failed:   make(map[string]string),
	}

	rows, err := readWide(l.widePath)
	if err != nil {
		return nil, err
	}
	l.rows = rows

	failed, err := readFailures(l.failPath)
	if err != nil {
		return nil, err
	}
	for id, reason := range failed {
		if _, ok := l.rows[id]; ok {
			continue
		}
		l.failed[id] = reason
	}
	return l, nil
}

// Completed reports whether id already has a recorded timeline.
func (l *Ledger) Completed(id string) bool {
	_, ok := l.rows[id]
	return ok
}

// Failed reports whether id is permanently failed.
func (l *Ledger) Failed(id string) bool {
	_, ok := l.failed[id]
	return ok
}

// Done reports whether id needs no further network work.
func (l *Ledger) Done(id string) bool {
	return l.Completed(id) || l.Failed(id)
}

// Len returns the sizes of the completed and failed sets.
func (l *Ledger) Len() (completed, failed int) {
	return len(l.rows), len(l.failed)
}

// Reason returns the recorded failure reason for id.
func (l *Ledger) Reason(id string) (string, bool) {
	r, ok := l.failed[id]
	return r, ok
}

// MarkComplete adds id with its timeline to the completed set. The change is
// held in memory until Persist.
func (l *Ledger) MarkComplete(id string, tl types.Timeline) error {
	if l.Done(id) {
		return fmt.Errorf("%w: %s already recorded", ErrLedgerConflict, id)
	}
	l.rows[id] = timeline.Row(tl)
	l.dirty = true
	return nil
}

// MarkFailed adds id to the failed set and appends (id, reason) to the
// failure ledger immediately.
func (l *Ledger) MarkFailed(id, reason string) error {
	if l.Done(id) {
		return fmt.Errorf("%w: %s already recorded", ErrLedgerConflict, id)
	}
	if err := appendFailure(l.failPath, id, reason); err != nil {
		return err
	}
	l.failed[id] = reason
	return nil
}

// Persist rewrites the checkpoint table, sorted by id, through a temporary
// file and rename. It does nothing when no row was added since the last call.
func (l *Ledger) Persist() error {
	if !l.dirty {
		return nil
	}
	if err := writeWide(l.widePath, l.rows); err != nil {
		return err
	}
	l.dirty = false
	return nil
}

// ReadTotals sums the year columns of a checkpoint table into id -> total.
func ReadTotals(path string) (map[string]int, error) {
	rows, err := readWide(path)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(rows))
	for id, counts := range rows {
		sum := 0
		for _, c := range counts {
			sum += c
		}
		totals[id] = sum
	}
	return totals, nil
}

func wideHeader() []string {
	header := []string{idColumn}
	for _, y := range types.YearRange() {
		header = append(header, strconv.Itoa(y))
	}
	return header
}

// readWide parses a checkpoint table. Year columns outside the fixed range
// are ignored; missing year columns read as 0.
func readWide(path string) (map[string][]int, error) {
	rows := make(map[string][]int)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rows, nil
		}
		return nil, fmt.Errorf("opening checkpoint table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return rows, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint header: %w", err)
	}

	idIdx := -1
	yearIdx := make(map[int]int) // column -> offset in YearRange
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == idColumn {
			idIdx = i
			continue
		}
		if y, err := strconv.Atoi(name); err == nil && types.InYearRange(y) {
			yearIdx[i] = y - types.YearMin
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("checkpoint table %s: missing %q column", path, idColumn)
	}

	width := types.YearMax - types.YearMin + 1
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading checkpoint line %d: %w", line, err)
		}
		if idIdx >= len(rec) {
			continue
		}
		id, ok := ident.Normalize(rec[idIdx])
		if !ok {
			continue
		}
		counts := make([]int, width)
		for col, off := range yearIdx {
			if col >= len(rec) {
				continue
			}
			n, err := parseCount(rec[col])
			if err != nil {
				return nil, fmt.Errorf("checkpoint line %d column %s: %w", line, header[col], err)
			}
			counts[off] = n
		}
		rows[id] = counts
	}
	return rows, nil
}

// parseCount accepts integers and integral floats ("3.0"); blank is 0.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func writeWide(path string, rows map[string][]int) error {
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wide-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Chmod(0o644)

	w := csv.NewWriter(tmp)
	w.Write(wideHeader())
	rec := make([]string, 0, types.YearMax-types.YearMin+2)
	for _, id := range ids {
		rec = append(rec[:0], id)
		for _, c := range rows[id] {
			rec = append(rec, strconv.Itoa(c))
		}
		w.Write(rec)
	}
	w.Flush()
	writeErr := w.Error()
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint table: %w", writeErr)
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

// readFailures parses the failure ledger. A header row is optional.
func readFailures(path string) (map[string]string, error) {
	failed := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failed, nil
		}
		return nil, fmt.Errorf("opening failure ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading failure ledger line %d: %w", line, err)
		}
		id, ok := ident.Normalize(rec[0])
		if !ok {
			continue
		}
		reason := ""
		if len(rec) > 1 {
			reason = rec[1]
		}
		failed[id] = reason
	}
	return failed, nil
}

func appendFailure(path, id, reason string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening failure ledger: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat failure ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if fi.Size() == 0 {
		w.Write([]string{idColumn, reasonColumn})
	}
	w.Write([]string{id, reason})
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("appending to failure ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing failure ledger: %w", err)
	}
	return nil
}
