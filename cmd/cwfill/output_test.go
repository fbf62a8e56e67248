package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlcipher/cursorwindow"
	"github.com/sqlcipher/cursorwindow/codec"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    byteSize
		wantErr bool
	}{
		{"2MiB", 2 << 20, false},
		{"4096", 4096, false},
		{"1k", 1000, false},
		{"0", 0, false},
		{"5GiB", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseByteSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testPage(t *testing.T) *codec.Page {
	t.Helper()
	h := cursorwindow.NewHost()
	w, err := h.NewWindow("test", 4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.SetNumColumns(3))
	for i := 0; i < 2; i++ {
		row, err := w.AllocRow()
		require.NoError(t, err)
		require.NoError(t, w.PutInt64(row, 0, int64(i)))
		require.NoError(t, w.PutString(row, 1, "name"))
	}
	require.NoError(t, w.PutBlob(1, 2, []byte{0xca, 0xfe}))
	w.SetStartPosition(10)

	page, err := newPage(w, []string{"id", "name", "data"}, 12, true)
	require.NoError(t, err)
	return page
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, testPage(t)))

	want := "#   id  name  data\n" +
		"10  0   name  NULL\n" +
		"11  1   name  x'cafe'\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, codec.JSON{}, testPage(t)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "test", got["window"])
	assert.Equal(t, float64(10), got["start_pos"])
	assert.Equal(t, float64(12), got["total_rows"])
	assert.Equal(t, true, got["exhausted"])
	assert.Len(t, got["rows"], 2)
}
