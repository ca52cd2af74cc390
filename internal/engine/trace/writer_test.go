package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"devcrawl/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    LineKind
		wantErr bool
	}{
		{"header", HeaderPrefix + " run=abc\n", LineHeader, false},
		{"record", `@dc {"ev":"exit","script":"m","func":"f","call":2,"depth":1}` + "\r\n", LineRecord, false},
		{"foreign", "Traceback (most recent call last):\n", LineForeign, false},
		{"unknown event", `@dc {"ev":"jump","script":"m","func":"f","call":1,"depth":0}`, LineForeign, true},
		{"zero call", `@dc {"ev":"enter","script":"m","func":"f","call":0,"depth":0}`, LineForeign, true},
		{"broken json", `@dc {"ev":`, LineForeign, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := ParseLine(7, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeTraceFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, line.Kind)
			assert.Equal(t, 7, line.Number)
		})
	}

	line, err := ParseLine(1, HeaderPrefix+" run=abc\n")
	require.NoError(t, err)
	assert.Equal(t, "abc", line.RunID)

	line, err = ParseLine(2, `@dc {"ev":"exit","script":"m","func":"f","call":2,"depth":1}`)
	require.NoError(t, err)
	assert.Equal(t, Record{Event: EventExit, Script: "m", Func: "f", Call: 2, Depth: 1}, line.Record)
}

func TestResetAndValidateLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	assert.False(t, IsValidLog(path))

	created, err := EnsureLog(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, IsValidLog(path))
	require.NoError(t, ValidateLog(path))

	w, err := OpenLog(path)
	require.NoError(t, err)
	_, _, err = w.Enter("main", "f")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	created, err = EnsureLog(path)
	require.NoError(t, err)
	assert.False(t, created)

	runID, err := ResetLog(path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Header(runID), string(data))
	assert.Len(t, strings.TrimPrefix(strings.TrimSpace(string(data)), HeaderPrefix+" run="), 36)

	other := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("just notes\n"), 0o644))
	err = ValidateLog(other)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidLog))
}

func TestWriter_StartSharesFirstTimestamp(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	tick := int64(0)
	w.now = func() time.Time {
		tick++
		return time.Unix(tick, 0)
	}

	_, _, err := w.Enter("main", "f")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	start, err := ParseLine(1, lines[0])
	require.NoError(t, err)
	enter, err := ParseLine(2, lines[1])
	require.NoError(t, err)
	assert.Equal(t, EventStart, start.Record.Event)
	assert.Equal(t, enter.Record.TS, start.Record.TS)
	assert.Equal(t, enter.Record.PID, start.Record.PID)
}
