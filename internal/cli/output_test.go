package cli

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOutputJSON(t *testing.T) {
	out, err := formatOutput(map[string]any{"a": 1}, "json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", out)
}

func TestFormatOutputYAML(t *testing.T) {
	out, err := formatOutput(map[string]any{"a": 1}, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "a: 1", out)
}

func TestFormatOutputUnknown(t *testing.T) {
	_, err := formatOutput(nil, "csvish")
	require.Error(t, err)
}

func TestFormatOutputTable(t *testing.T) {
	type row struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	out, err := formatOutput([]row{
		{Name: "filesystem", State: "connected"},
		{Name: "weather", State: "disconnected"},
	}, "table")
	require.NoError(t, err)

	want := `+------------+--------------+
| name       | state        |
+------------+--------------+
| filesystem | connected    |
| weather    | disconnected |
+------------+--------------+`
	assert.Equal(t, want, out)
}

func TestFormatOutputCSV(t *testing.T) {
	type row struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	out, err := formatOutput([]row{
		{Name: "filesystem", State: "connected"},
		{Name: "weather", State: "disconnected"},
	}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "name,state\nfilesystem,connected\nweather,disconnected", out)
}

func TestFormatOutputCSVQuotesCommas(t *testing.T) {
	out, err := formatOutput([]map[string]any{
		{"name": "fs", "note": "a, b"},
	}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "name,note\nfs,\"a, b\"", out)
}

func TestFormatOutputCSVDoesNotTruncate(t *testing.T) {
	long := strings.Repeat("x", 80)
	out, err := formatOutput([]map[string]any{{"v": long}}, "csv")
	require.NoError(t, err)
	assert.Contains(t, out, long)
}

func TestFormatOutputTableFallsBackForScalars(t *testing.T) {
	out, err := formatOutput(map[string]any{"a": 1}, "table")
	require.NoError(t, err)
	assert.Contains(t, out, `"a": 1`, "non-tabular values render as json")
}

func TestFormatOutputCSVFallsBackForScalars(t *testing.T) {
	out, err := formatOutput(map[string]any{"a": 1}, "csv")
	require.NoError(t, err)
	assert.Contains(t, out, `"a": 1`, "non-tabular values render as json")
}

func TestTableTruncatesLongCells(t *testing.T) {
	long := strings.Repeat("x", 80)
	out, err := formatOutput([]map[string]any{{"v": long}}, "table")
	require.NoError(t, err)
	assert.Contains(t, out, strings.Repeat("x", 50))
	assert.NotContains(t, out, strings.Repeat("x", 51))
}

func TestTruncateRunesKeepsMultibyteIntact(t *testing.T) {
	long := strings.Repeat("é", 80)
	got := truncateRunes(long, 50)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 50, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("é", 50), got)
}

func TestTruncateRunesShortUnchanged(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 50))
}
