package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteStructured(t *testing.T) {
	payload := struct {
		Kind  string `json:"kind" yaml:"kind"`
		Count int    `json:"count" yaml:"count"`
	}{Kind: "device", Count: 2}

	var jsonOut bytes.Buffer
	require.NoError(t, WriteStructured(&jsonOut, FormatJSON, payload))
	assert.Contains(t, jsonOut.String(), `"kind": "device"`)

	var yamlOut bytes.Buffer
	require.NoError(t, WriteStructured(&yamlOut, FormatYAML, payload))
	assert.Contains(t, yamlOut.String(), "kind: device")
	assert.Contains(t, yamlOut.String(), "count: 2")

	assert.Error(t, WriteStructured(&bytes.Buffer{}, FormatTable, payload))
}

func TestWriteTable(t *testing.T) {
	var out bytes.Buffer
	err := WriteTable(&out, []string{"TIME", "STATE"}, [][]string{{"12:00:00", "on"}})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "TIME")
	assert.Contains(t, out.String(), "12:00:00  on")

	err = WriteTable(&bytes.Buffer{}, []string{"A", "B"}, [][]string{{"only one"}})
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "<none>", OrNone("  "))
	assert.Equal(t, "x", OrNone(" x "))
	assert.Equal(t, "00:01:40", Clock(100, nil))
	assert.Equal(t, "<never>", Stamp(time.Time{}))
	assert.Equal(t, "21.5", Float(21.5))
	assert.Equal(t, "3", Float(3))
}
