package fetcher

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()

	rows, err := ParseCSV(strings.NewReader("Player,Squad\nLionel Messi,Inter Miami\n\"Silva, Bernardo\",Man City\n"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Player", "Squad"}, rows[0])
	assert.Equal(t, []string{"Silva, Bernardo", "Man City"}, rows[2])
}

func TestParseCSV_BOMAndRaggedRows(t *testing.T) {
	t.Parallel()

	input := "\xEF\xBB\xBFPlayer,Squad,Pos\nMessi,Inter Miami\n"
	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Player", rows[0][0])
	assert.Len(t, rows[1], 2)
}

func TestReadCSV_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	header := []string{"Player", "Market Value (raw)"}
	rows := [][]string{{"Lionel Messi", "€30.00m"}, {"Quote \"Q\"", ""}}
	require.NoError(t, WriteCSV(&buf, header, rows))

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, append([][]string{header}, rows...), got)
}
