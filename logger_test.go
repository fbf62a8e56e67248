package cursorwindow

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogger_Fill(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewHost(WithLogger(logger), WithBusyBackoff(0))
	w := newTestWindow(t, h, windowFor(40))

	cur := intRows(100)
	cur.steps = append([]fakeStep{{busy: true}}, cur.steps...)
	_, err := h.Fill(context.Background(), cur, w, FillRequest{RequiredPos: 60})
	require.NoError(t, err)

	msgs := map[string]map[string]any{}
	for _, rec := range decodeRecords(t, &buf) {
		msgs[rec["msg"].(string)] = rec
	}
	require.Contains(t, msgs, "database locked, retrying")
	require.Contains(t, msgs, "window filled before required row, restarting")
	require.Contains(t, msgs, "window full")
	require.Contains(t, msgs, "fill completed")

	done := msgs["fill completed"]
	assert.Equal(t, t.Name(), done["window"])
	assert.Equal(t, float64(40), done["start_pos"])
	assert.Equal(t, float64(1), done["restarts"])
}

func TestLogger_FillFailed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h := NewHost(WithLogger(logger), WithBusyBackoff(0), WithBusyRetryLimit(2))
	w := newTestWindow(t, h, 1024)

	_, err := h.Fill(context.Background(), newFakeCursor(1).addBusy(3), w, FillRequest{})
	require.ErrorIs(t, err, ErrBusyTimeout)

	recs := decodeRecords(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "bailing on database busy retry", recs[0]["msg"])
	assert.Equal(t, "fill failed", recs[1]["msg"])
	assert.Equal(t, "ERROR", recs[1]["level"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogFill(context.Background(), FillResult{}, 0, nil)
}
