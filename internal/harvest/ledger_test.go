// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citegraph/internal/timeline"
	"github.com/pdiddy/citegraph/pkg/types"
)

func TestLedger_EmptyDirectory(t *testing.T) {
	l, err := Load(t.TempDir())
	require.NoError(t, err)
	completed, failed := l.Len()
	assert.Zero(t, completed)
	assert.Zero(t, failed)
	require.NoError(t, l.Persist())
}

func TestLedger_MarkAndPersist(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, l.MarkComplete("W20", types.Timeline{2001: 2, 2025: 1}))
	require.NoError(t, l.MarkComplete("W10", types.Timeline{}))
	require.NoError(t, l.MarkFailed("W30", "http_error 500"))
	require.NoError(t, l.Persist())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, reloaded.Completed("W10"))
	assert.True(t, reloaded.Completed("W20"))
	assert.True(t, reloaded.Failed("W30"))

	totals, err := ReadTotals(filepath.Join(dir, WideTableFile))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"W10": 0, "W20": 3}, totals)
}

func TestLedger_CompletedAndFailedAreDisjoint(t *testing.T) {
	l, err := Load(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.MarkComplete("W1", nil))
	assert.ErrorIs(t, l.MarkFailed("W1", "late"), ErrLedgerConflict)
	assert.ErrorIs(t, l.MarkComplete("W1", nil), ErrLedgerConflict)

	require.NoError(t, l.MarkFailed("W2", "http_error 404"))
	assert.ErrorIs(t, l.MarkComplete("W2", nil), ErrLedgerConflict)
	assert.ErrorIs(t, l.MarkFailed("W2", "again"), ErrLedgerConflict)
}

func TestLedger_LoadPrefersCompleted(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, l.MarkComplete("W1", types.Timeline{2010: 1}))
	require.NoError(t, l.Persist())
	// Written by an older tool without a header row.
	require.NoError(t, os.WriteFile(filepath.Join(dir, FailureFile),
		[]byte("W1,http_error 500\nW2,\"network_error timeout, twice\"\n"), 0o644))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, reloaded.Completed("W1"))
	assert.False(t, reloaded.Failed("W1"))
	reason, ok := reloaded.Reason("W2")
	require.True(t, ok)
	assert.Equal(t, "network_error timeout, twice", reason)
}

func TestLedger_PersistWithoutChangesWritesNothing(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, l.Persist())
	_, err = os.Stat(filepath.Join(dir, WideTableFile))
	assert.True(t, os.IsNotExist(err))
}

func TestReadTotals_ToleratesForeignLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.csv")
	table := strings.Join([]string{
		"2000,openalex_id,1970,2001,extra",
		"3.0,https://openalex.org/W5,100,4,x",
		",W6,,,",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))

	totals, err := ReadTotals(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"W5": 7, "W6": 0}, totals)
}

func TestReadTotals_MissingIDColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,2000\nW1,2\n"), 0o644))
	_, err := ReadTotals(path)
	assert.Error(t, err)
}

func TestRawLog_AppendAndEach(t *testing.T) {
	log := NewRawLog(filepath.Join(t.TempDir(), RawLogFile))
	require.NoError(t, log.Append([]byte("{\n  \"a\": 1\n}")))
	require.NoError(t, log.Append([]byte(`{"b": [1, 2]}`)))
	assert.Error(t, log.Append([]byte(`not json`)))

	var got []string
	require.NoError(t, log.Each(func(_ int, payload []byte) error {
		got = append(got, string(payload))
		return nil
	}))
	assert.Equal(t, []string{`{"a":1}`, `{"b":[1,2]}`}, got)
}

func TestAuditDir(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, l.MarkComplete("W1", types.Timeline{2001: 1}))
	require.NoError(t, l.MarkComplete("W2", types.Timeline{}))
	require.NoError(t, l.MarkFailed("W3", "http_error 404"))
	require.NoError(t, l.Persist())

	raw := NewRawLog(filepath.Join(dir, RawLogFile))
	require.NoError(t, raw.Append([]byte(`{"group_by": [{"key": "2001", "count": 1}]}`)))

	a, err := AuditDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Completed)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, 1, a.Payloads)
	assert.Equal(t, 1, a.Missing())
	assert.False(t, a.Consistent())

	require.NoError(t, raw.Append([]byte(`{"counts_by_year": []}`)))
	require.NoError(t, raw.Append([]byte(`{"id": "W9"}`)))
	a, err = AuditDir(dir)
	require.NoError(t, err)
	assert.True(t, a.Consistent())
	assert.Equal(t, map[timeline.Shape]int{
		timeline.ShapeGroupBy:      1,
		timeline.ShapeCountsByYear: 1,
		timeline.ShapeUnknown:      1,
	}, a.Shapes)
}

func TestAuditDir_Empty(t *testing.T) {
	a, err := AuditDir(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, a.Payloads)
	assert.True(t, a.Consistent())
}
