package trace

import (
	"bufio"
	"devcrawl/internal/core/errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Writer appends trace records to a sink. It keeps the same process-wide
// stack and per-function counters as the injected runtime, so Go callers
// and tests produce logs the reconstructor reads identically.
type Writer struct {
	mu       sync.Mutex
	out      io.Writer
	closer   io.Closer
	now      func() time.Time
	pid      int
	started  bool
	stack    []FunctionKey
	counters map[FunctionKey]int
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{
		out:      out,
		now:      time.Now,
		pid:      os.Getpid(),
		counters: make(map[FunctionKey]int),
	}
}

// OpenLog opens path for appending, creating it with a header when missing.
func OpenLog(path string) (*Writer, error) {
	if _, err := EnsureLog(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "open trace log"), errors.CtxPath, path)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Enter records a call of fn and returns its call index and depth.
func (w *Writer) Enter(script, fn string) (call, depth int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := FunctionKey{Script: script, Func: fn}
	w.counters[key]++
	call = w.counters[key]
	depth = len(w.stack)
	w.stack = append(w.stack, key)
	return call, depth, w.emit(Record{Event: EventEnter, Script: script, Func: fn, Call: call, Depth: depth})
}

// Exit records the return of a call previously opened with Enter.
func (w *Writer) Exit(script, fn string, call, depth int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.stack) > 0 {
		w.stack = w.stack[:len(w.stack)-1]
	}
	return w.emit(Record{Event: EventExit, Script: script, Func: fn, Call: call, Depth: depth})
}

// Write appends rec as is.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(rec)
}

func (w *Writer) emit(rec Record) error {
	if rec.TS == 0 {
		rec.TS = float64(w.now().UnixNano()) / 1e9
	}
	if !w.started {
		w.started = true
		// The start record shares the first record's timestamp.
		if err := w.write(Record{Event: EventStart, PID: w.pid, TS: rec.TS}); err != nil {
			return err
		}
	}
	rec.PID = w.pid
	return w.write(rec)
}

// write issues exactly one Write per record so concurrent appenders on an
// O_APPEND descriptor never split a line.
func (w *Writer) write(rec Record) error {
	if rec.TS == 0 {
		rec.TS = float64(w.now().UnixNano()) / 1e9
	}
	line, err := rec.Encode()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode trace record")
	}
	if _, err := w.out.Write(line); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "append trace record")
	}
	return nil
}

// ResetLog truncates path and writes a fresh header. It returns the new run id.
func ResetLog(path string) (string, error) {
	runID := uuid.NewString()
	if err := os.WriteFile(path, []byte(Header(runID)), 0o644); err != nil {
		return "", errors.AddContext(errors.Wrap(err, errors.CodeInternal, "reset trace log"), errors.CtxPath, path)
	}
	return runID, nil
}

// EnsureLog creates path with a header when it does not exist yet.
func EnsureLog(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "stat trace log"), errors.CtxPath, path)
	}
	if _, err := ResetLog(path); err != nil {
		return false, err
	}
	return true, nil
}

// IsValidLog reports whether path starts with a devcrawl header.
func IsValidLog(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	first, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	return strings.HasPrefix(first, HeaderPrefix)
}

// ValidateLog is IsValidLog as an INVALID_LOG error.
func ValidateLog(path string) error {
	if IsValidLog(path) {
		return nil
	}
	return errors.AddContext(
		errors.New(errors.CodeInvalidLog, "not a devcrawl trace log: missing header line"),
		errors.CtxPath, path)
}
