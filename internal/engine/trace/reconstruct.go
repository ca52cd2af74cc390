// # internal/engine/trace/reconstruct.go
package trace

import (
	"bufio"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/shared/observability"
	"fmt"
	"io"
	"sort"
	"time"
)

// FunctionKey names a traced function across scripts.
type FunctionKey struct {
	Script string
	Func   string
}

func (k FunctionKey) String() string {
	return k.Script + " | " + k.Func
}

// CallNode is one reconstructed invocation.
type CallNode struct {
	Script     string
	Func       string
	Call       int
	Depth      int
	Incomplete bool
	Children   []*CallNode
}

func (n *CallNode) Key() FunctionKey {
	return FunctionKey{Script: n.Script, Func: n.Func}
}

// Run is what one process wrote between two header lines.
type Run struct {
	ID         string
	PID        int
	Roots      []*CallNode
	Incomplete int
}

func (r *Run) empty() bool {
	return len(r.Roots) == 0
}

type FunctionTotal struct {
	FunctionKey
	Calls int
}

// Mismatch is an exit record that did not close the innermost open call.
type Mismatch struct {
	Line     int
	Expected string
	Got      Record
}

func (m Mismatch) String() string {
	if m.Expected == "" {
		return fmt.Sprintf("line %d: %s with no open call", m.Line, m.Got)
	}
	return fmt.Sprintf("line %d: %s while %s was open", m.Line, m.Got, m.Expected)
}

// Edge is a caller to callee relation aggregated over the whole log.
type Edge struct {
	Caller FunctionKey
	Callee FunctionKey
	Calls  int
}

// Reconstruction is the call tree of a log plus its diagnostics.
type Reconstruction struct {
	Runs []*Run
	// Totals holds enter counts, most called first, ties in first-appearance order.
	Totals     []FunctionTotal
	Corrupt    int
	Problems   []error
	Mismatches []Mismatch
	Incomplete int
	Foreign    int
}

// TotalCalls sums the enter events of every function.
func (rc *Reconstruction) TotalCalls() int {
	n := 0
	for _, t := range rc.Totals {
		n += t.Calls
	}
	return n
}

// Warning returns an INCOMPLETE_RUN error when calls were left open.
func (rc *Reconstruction) Warning() error {
	if rc.Incomplete == 0 {
		return nil
	}
	return errors.IncompleteRun(rc.Incomplete)
}

// Walk visits every node depth-first in log order.
func (rc *Reconstruction) Walk(visit func(run *Run, node, parent *CallNode)) {
	var walk func(run *Run, node, parent *CallNode)
	walk = func(run *Run, node, parent *CallNode) {
		visit(run, node, parent)
		for _, child := range node.Children {
			walk(run, child, node)
		}
	}
	for _, run := range rc.Runs {
		for _, root := range run.Roots {
			walk(run, root, nil)
		}
	}
}

// Edges aggregates caller to callee relations in first-appearance order.
func (rc *Reconstruction) Edges() []Edge {
	var edges []Edge
	index := make(map[[2]FunctionKey]int)
	rc.Walk(func(_ *Run, node, parent *CallNode) {
		if parent == nil {
			return
		}
		k := [2]FunctionKey{parent.Key(), node.Key()}
		i, ok := index[k]
		if !ok {
			i = len(edges)
			index[k] = i
			edges = append(edges, Edge{Caller: k[0], Callee: k[1]})
		}
		edges[i].Calls++
	})
	return edges
}

// Builder rebuilds call trees from a record stream. Several processes may
// append to one log, so every process keeps its own run and call stack.
// Records without a pid belong to the process that started last.
type Builder struct {
	rc      *Reconstruction
	runID   string
	lastPID int
	open    map[int]*openRun
	all     []*Run
	totals  map[FunctionKey]int
}

type openRun struct {
	run   *Run
	stack []*CallNode
}

func NewBuilder() *Builder {
	return &Builder{
		rc:     &Reconstruction{},
		open:   make(map[int]*openRun),
		totals: make(map[FunctionKey]int),
	}
}

// Add consumes one classified line.
func (b *Builder) Add(line Line) {
	switch line.Kind {
	case LineForeign:
		if line.Text != "" {
			b.rc.Foreign++
			observability.TraceRecordsTotal.WithLabelValues("foreign").Inc()
		}
	case LineHeader:
		b.closeAll()
		b.runID = line.RunID
		b.lastPID = 0
	case LineRecord:
		observability.TraceRecordsTotal.WithLabelValues(string(line.Record.Event)).Inc()
		b.addRecord(line.Number, line.Record)
	}
}

// AddProblem counts an undecodable record.
func (b *Builder) AddProblem(err error) {
	b.rc.Corrupt++
	b.rc.Problems = append(b.rc.Problems, err)
	observability.TraceRecordsTotal.WithLabelValues("corrupt").Inc()
}

func (b *Builder) addRecord(number int, rec Record) {
	pid := rec.PID
	if pid == 0 {
		pid = b.lastPID
	}

	switch rec.Event {
	case EventStart:
		b.lastPID = pid
		if cur, ok := b.open[pid]; ok {
			if cur.run.empty() && len(cur.stack) == 0 {
				return
			}
			// A reused pid is a new process.
			b.close(pid)
		}
		b.openRun(pid)

	case EventEnter:
		cur := b.runFor(pid)
		node := &CallNode{Script: rec.Script, Func: rec.Func, Call: rec.Call, Depth: len(cur.stack)}
		if len(cur.stack) == 0 {
			cur.run.Roots = append(cur.run.Roots, node)
		} else {
			top := cur.stack[len(cur.stack)-1]
			top.Children = append(top.Children, node)
		}
		cur.stack = append(cur.stack, node)
		b.count(rec.Key())

	case EventExit:
		cur := b.runFor(pid)
		if len(cur.stack) == 0 {
			b.rc.Mismatches = append(b.rc.Mismatches, Mismatch{Line: number, Got: rec})
			return
		}
		top := cur.stack[len(cur.stack)-1]
		cur.stack = cur.stack[:len(cur.stack)-1]
		if top.Key() != rec.Key() || top.Call != rec.Call {
			b.rc.Mismatches = append(b.rc.Mismatches, Mismatch{
				Line:     number,
				Expected: fmt.Sprintf("%s.%s#%d", top.Script, top.Func, top.Call),
				Got:      rec,
			})
		}
	}
}

func (b *Builder) runFor(pid int) *openRun {
	if cur, ok := b.open[pid]; ok {
		return cur
	}
	return b.openRun(pid)
}

func (b *Builder) openRun(pid int) *openRun {
	cur := &openRun{run: &Run{ID: b.runID, PID: pid}}
	b.open[pid] = cur
	b.all = append(b.all, cur.run)
	return cur
}

func (b *Builder) count(key FunctionKey) {
	i, ok := b.totals[key]
	if !ok {
		i = len(b.rc.Totals)
		b.totals[key] = i
		b.rc.Totals = append(b.rc.Totals, FunctionTotal{FunctionKey: key})
	}
	b.rc.Totals[i].Calls++
}

// close flags the calls still open in pid's run as incomplete.
func (b *Builder) close(pid int) {
	cur, ok := b.open[pid]
	if !ok {
		return
	}
	for _, node := range cur.stack {
		node.Incomplete = true
	}
	cur.run.Incomplete += len(cur.stack)
	b.rc.Incomplete += len(cur.stack)
	delete(b.open, pid)
}

func (b *Builder) closeAll() {
	for pid := range b.open {
		b.close(pid)
	}
}

// Finish closes any open calls and returns the reconstruction. The builder
// must not be used afterwards.
func (b *Builder) Finish() *Reconstruction {
	b.closeAll()
	for _, run := range b.all {
		if !run.empty() {
			b.rc.Runs = append(b.rc.Runs, run)
		}
	}
	sort.SliceStable(b.rc.Totals, func(i, j int) bool {
		return b.rc.Totals[i].Calls > b.rc.Totals[j].Calls
	})
	return b.rc
}

// Reconstruct reads a whole log. Undecodable records and exit mismatches are
// reported in the result; only read failures return an error.
func Reconstruct(r io.Reader) (*Reconstruction, error) {
	started := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("reconstruct").Observe(time.Since(started).Seconds())
	}()

	b := NewBuilder()
	br := bufio.NewReader(r)
	for number := 1; ; number++ {
		raw, err := br.ReadString('\n')
		if raw != "" {
			line, perr := ParseLine(number, raw)
			if perr != nil {
				b.AddProblem(perr)
			} else {
				b.Add(line)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "read trace log")
		}
	}
	return b.Finish(), nil
}
