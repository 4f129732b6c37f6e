// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citegraph/pkg/types"
)

const sampleCorpus = `title,year,oa_openalex_id,oa_referenced_works_parsed
First paper,2000,https://openalex.org/W1,"['https://openalex.org/W2', 'https://openalex.org/W3']"
No id,2001,,"['W1']"
Broken refs,2001.0,W4,{broken
Unknown year,,W5,[]
Duplicate,2003,W1,"['W6']"
`

func TestRead(t *testing.T) {
	rows, stats, err := Read(strings.NewReader(sampleCorpus), types.CorpusConfig{}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, Stats{Rows: 5, Kept: 4, NoIdentifier: 1, BadRefs: 1}, stats)
	require.Len(t, rows, 4)

	assert.Equal(t, Row{ID: "W1", Year: 2000, Title: "First paper", References: []string{"W2", "W3"}}, rows[0])
	assert.Equal(t, "W4", rows[1].ID)
	assert.Equal(t, 2001, rows[1].Year)
	assert.Empty(t, rows[1].References)
	assert.Equal(t, 0, rows[2].Year)
	assert.Equal(t, []string{"W6"}, rows[3].References)
}

func TestRead_CustomColumns(t *testing.T) {
	data := "id,pub,refs\nW7,1999,\"[\"\"W8\"\"]\"\n"
	cfg := types.CorpusConfig{IDColumn: "id", YearColumn: "pub", RefsColumn: "refs"}
	rows, _, err := Read(strings.NewReader(data), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{ID: "W7", Year: 1999, References: []string{"W8"}}, rows[0])
}

func TestRead_MissingColumns(t *testing.T) {
	for name, data := range map[string]string{
		"no id column":   "year,refs\n2000,[]\n",
		"no year column": "oa_openalex_id\nW1\n",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(data), types.CorpusConfig{}, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2001", 2001},
		{"2001.0", 2001},
		{" 1999 ", 1999},
		{"", 0},
		{"nan", 0},
		{"2001.5", 0},
		{"-3", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseYear(tt.in))
		})
	}
}

func TestHarvestOrder(t *testing.T) {
	rows := []Row{{ID: "W1"}, {ID: "W2"}, {ID: "W1"}, {ID: "W3"}}
	assert.Equal(t, []string{"W3", "W1", "W2"}, HarvestOrder(rows))
	assert.Empty(t, HarvestOrder(nil))
}

func TestPubYears(t *testing.T) {
	rows := []Row{{ID: "W1", Year: 2000}, {ID: "W2"}, {ID: "W1", Year: 2005}, {ID: "W2", Year: 2010}}
	assert.Equal(t, map[string]int{"W1": 2000, "W2": 2010}, PubYears(rows))
}

func TestLoadAndReadTitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCorpus), 0o644))

	rows, _, err := Load(types.CorpusConfig{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	titles, err := ReadTitles(types.CorpusConfig{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"First paper", "No id", "Broken refs", "Unknown year", "Duplicate"}, titles)

	_, _, err = Load(types.CorpusConfig{Path: filepath.Join(t.TempDir(), "missing.csv")}, zerolog.Nop())
	assert.Error(t, err)
}
