package trace

import (
	"devcrawl/internal/core/errors"
	"encoding/json"
	"fmt"
	"strings"
)

type EventKind string

const (
	EventEnter EventKind = "enter"
	EventExit  EventKind = "exit"
	// EventStart is written once by each process before its first call.
	EventStart EventKind = "start"
)

const (
	// RecordPrefix marks trace lines so program output sharing the sink can
	// be told apart from records.
	RecordPrefix = "@dc "
	// HeaderPrefix starts the first line of every log created by devcrawl.
	HeaderPrefix = "--- debug.log generated using devcrawl ---"
)

// Record is one line of the trace log.
type Record struct {
	Event  EventKind `json:"ev"`
	Script string    `json:"script,omitempty"`
	Func   string    `json:"func,omitempty"`
	Call   int       `json:"call,omitempty"`
	Depth  int       `json:"depth"`
	PID    int       `json:"pid,omitempty"`
	TS     float64   `json:"ts,omitempty"`
}

// Key identifies the function a record belongs to.
func (r Record) Key() FunctionKey {
	return FunctionKey{Script: r.Script, Func: r.Func}
}

func (r Record) String() string {
	switch r.Event {
	case EventEnter, EventExit:
		return fmt.Sprintf("%s %s.%s#%d@%d", r.Event, r.Script, r.Func, r.Call, r.Depth)
	default:
		return string(r.Event)
	}
}

// Encode renders the record as a complete log line, newline included.
func (r Record) Encode() ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, len(RecordPrefix)+len(payload)+1)
	line = append(line, RecordPrefix...)
	line = append(line, payload...)
	return append(line, '\n'), nil
}

func (r Record) validate() error {
	switch r.Event {
	case EventStart:
		return nil
	case EventEnter, EventExit:
	default:
		return fmt.Errorf("unknown event %q", r.Event)
	}
	if r.Script == "" || r.Func == "" {
		return fmt.Errorf("%s record without script or function", r.Event)
	}
	if r.Call < 1 {
		return fmt.Errorf("call index %d out of range", r.Call)
	}
	if r.Depth < 0 {
		return fmt.Errorf("negative depth %d", r.Depth)
	}
	return nil
}

type LineKind int

const (
	LineForeign LineKind = iota
	LineHeader
	LineRecord
)

// Line is one classified log line.
type Line struct {
	Kind   LineKind
	Number int
	Record Record
	// RunID is set on header lines that carry one.
	RunID string
	Text  string
}

// ParseLine classifies a raw log line. Lines carrying the record prefix that
// do not decode return a TRACE_FORMAT error.
func ParseLine(number int, raw string) (Line, error) {
	text := strings.TrimRight(raw, "\r\n")
	line := Line{Kind: LineForeign, Number: number, Text: text}

	switch {
	case strings.HasPrefix(text, HeaderPrefix):
		line.Kind = LineHeader
		if _, id, ok := strings.Cut(text[len(HeaderPrefix):], "run="); ok {
			line.RunID = strings.TrimSpace(id)
		}
		return line, nil

	case strings.HasPrefix(text, RecordPrefix):
		var rec Record
		if err := json.Unmarshal([]byte(text[len(RecordPrefix):]), &rec); err != nil {
			return line, errors.TraceFormat(number, "undecodable record", err)
		}
		if err := rec.validate(); err != nil {
			return line, errors.TraceFormat(number, err.Error(), nil)
		}
		line.Kind = LineRecord
		line.Record = rec
		return line, nil
	}
	return line, nil
}

// Header renders the first line of a freshly reset log.
func Header(runID string) string {
	return HeaderPrefix + " run=" + runID + "\n"
}
