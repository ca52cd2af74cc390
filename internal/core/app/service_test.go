// # internal/core/app/service_test.go
package app

import (
	"bytes"
	"context"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/core/ports"
	"devcrawl/internal/engine/trace"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScripts(t *testing.T, dir string, files map[string]string) []string {
	t.Helper()
	paths := make([]string, 0, len(files))
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInstrument_Batch(t *testing.T) {
	dir := t.TempDir()
	// main comes first so ordering has to move helper ahead of it.
	mainPath := filepath.Join(dir, "main.py")
	helperPath := filepath.Join(dir, "helper.py")
	require.NoError(t, os.WriteFile(mainPath, []byte("import helper\n\ndef main():\n    helper.run()\n"), 0o755))
	require.NoError(t, os.WriteFile(helperPath, []byte("def run():\n    return 1\n"), 0o644))

	svc := NewService()
	report, err := svc.Instrument(context.Background(), ports.InstrumentRequest{Paths: []string{mainPath, helperPath}})
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected failures: %v", report.Err())

	assert.Equal(t, []string{"helper", "main"}, report.Order)
	require.Len(t, report.Instrumented, 2)
	assert.Equal(t, "helper", report.Instrumented[0].Module)
	assert.Equal(t, 1, report.Instrumented[1].Functions)
	assert.Equal(t, 1, report.Instrumented[1].Rewrites)

	out := readFile(t, filepath.Join(dir, "main_debug.py"))
	assert.Contains(t, out, "import helper_debug as helper  # devcrawl:import helper+as\n")
	assert.Contains(t, out, "@_devcrawl_trace.traced(\"main\", \"main\")  # devcrawl:injected\ndef main():\n")
	assert.Contains(t, readFile(t, filepath.Join(dir, "helper_debug.py")), "traced(\"helper\", \"run\")")

	// Originals are untouched and permissions carry over.
	assert.Equal(t, "import helper\n\ndef main():\n    helper.run()\n", readFile(t, mainPath))
	info, err := os.Stat(filepath.Join(dir, "main_debug.py"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestInstrument_CycleWritesNothing(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{
		"a.py": "import b\n",
		"b.py": "from a import x\n",
		"c.py": "x = 1\n",
	})

	_, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDependencyCycle), "got %v", err)

	matches, _ := filepath.Glob(filepath.Join(dir, "*_debug.py"))
	assert.Empty(t, matches)
}

func TestInstrument_SelfImportIsCycle(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{"loop.py": "import loop\n"})

	_, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths})
	assert.True(t, errors.IsCode(err, errors.CodeDependencyCycle), "got %v", err)
}

func TestInstrument_ParseFailureKeepsDependentsOnOriginal(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{
		"broken.py": "def broken(:\n    pass\n",
		"user.py":   "import broken\n\ndef go():\n    pass\n",
	})

	report, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths})
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, filepath.Join(dir, "broken.py"), report.Failed[0].Path)
	assert.True(t, errors.IsCode(report.Err(), errors.CodeSourceParse), "got %v", report.Err())

	out := readFile(t, filepath.Join(dir, "user_debug.py"))
	assert.Contains(t, out, "\nimport broken\n")
	assert.NotContains(t, out, "broken_debug")
	assert.NoFileExists(t, filepath.Join(dir, "broken_debug.py"))
}

func TestInstrument_EmitFailureKeepsImportersOnOriginal(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{
		"b.py": "def g():\n    return 1\n",
		"a.py": "import b\n\ndef f():\n    return b.g()\n",
	})
	// A non-empty directory where b's sibling belongs cannot be replaced.
	blocked := filepath.Join(dir, "b_debug.py")
	require.NoError(t, os.MkdirAll(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "keep"), nil, 0o644))

	report, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths, Force: true})
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, filepath.Join(dir, "b.py"), report.Failed[0].Path)
	require.Len(t, report.Instrumented, 1)
	assert.Zero(t, report.Instrumented[0].Rewrites)

	out := readFile(t, filepath.Join(dir, "a_debug.py"))
	assert.Contains(t, out, "\nimport b\n")
	assert.NotContains(t, out, "b_debug")
}

func TestInstrument_AmbiguousModule(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{
		"one/util.py": "x = 1\n",
		"two/util.py": "x = 2\n",
	})

	_, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths})
	assert.True(t, errors.IsCode(err, errors.CodeAmbiguousModule), "got %v", err)
}

func TestInstrument_RefusesInstrumentedInput(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{"main_debug.py": "x = 1\n"})

	_, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths})
	assert.True(t, errors.IsCode(err, errors.CodeReentrant), "got %v", err)
}

func TestInstrument_RejectsNonPython(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{"notes.txt": "hello\n"})

	_, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths})
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported), "got %v", err)
}

func TestInstrument_MissingScript(t *testing.T) {
	_, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{
		Paths: []string{filepath.Join(t.TempDir(), "absent.py")},
	})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)
}

func TestInstrument_Overwrite(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{"job.py": "def run():\n    pass\n"})
	dest := filepath.Join(dir, "job_debug.py")
	require.NoError(t, os.WriteFile(dest, []byte("stale\n"), 0o644))

	svc := NewService()
	var asked []string
	report, err := svc.Instrument(context.Background(), ports.InstrumentRequest{
		Paths:     paths,
		Overwrite: func(d string) bool { asked = append(asked, d); return false },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, asked)
	assert.Equal(t, paths, report.Declined)
	assert.Empty(t, report.Instrumented)
	assert.Equal(t, "stale\n", readFile(t, dest))

	report, err = svc.Instrument(context.Background(), ports.InstrumentRequest{
		Paths:     paths,
		Overwrite: func(string) bool { return true },
	})
	require.NoError(t, err)
	require.Len(t, report.Instrumented, 1)
	assert.True(t, report.Instrumented[0].Existed)
	assert.Contains(t, readFile(t, dest), "devcrawl:injected")

	report, err = svc.Instrument(context.Background(), ports.InstrumentRequest{Paths: paths, Force: true})
	require.NoError(t, err)
	assert.Len(t, report.Instrumented, 1)
	assert.Empty(t, report.Declined)
}

func TestInstrument_FileSink(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{"job.py": "def run():\n    pass\n"})
	logPath := filepath.Join(dir, "debug.log")

	_, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{
		Paths: paths, ToFile: true, LogPath: logPath,
	})
	require.NoError(t, err)
	assert.True(t, trace.IsValidLog(logPath))
	assert.Contains(t, readFile(t, filepath.Join(dir, "job_debug.py")), ".tracer(\""+logPath+"\")")

	_, err = NewService().Instrument(context.Background(), ports.InstrumentRequest{Paths: paths, ToFile: true})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
}

func TestInstrument_ExcludeAndOnly(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{
		"a.py":          "import b\n",
		"b.py":          "x = 1\n",
		"vendor/lib.py": "y = 2\n",
	})

	report, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{
		Paths:          paths,
		ExcludeScripts: []string{"**/vendor/**"},
		Only:           []string{"a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "vendor", "lib.py")}, report.Excluded)
	assert.Equal(t, []string{"b", "a"}, report.Order)
	require.Len(t, report.Instrumented, 1)
	assert.Equal(t, "a", report.Instrumented[0].Module)
	// b is still a batch member, so a's import is rewritten.
	assert.Contains(t, readFile(t, filepath.Join(dir, "a_debug.py")), "import b_debug as b")
	assert.NoFileExists(t, filepath.Join(dir, "b_debug.py"))
}

func TestInstrument_DuplicatePathsCollapse(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{"job.py": "x = 1\n"})

	report, err := NewService().Instrument(context.Background(), ports.InstrumentRequest{
		Paths: []string{paths[0], paths[0]},
	})
	require.NoError(t, err)
	assert.Len(t, report.Instrumented, 1)
}

func TestInstrument_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	paths := writeScripts(t, dir, map[string]string{"job.py": "x = 1\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService().Instrument(ctx, ports.InstrumentRequest{Paths: paths})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "job_debug.py"))
}

func TestStrip_RestoresOriginal(t *testing.T) {
	dir := t.TempDir()
	original := "\"\"\"Doc.\"\"\"\nimport helper\n\nclass Box:\n    def open(self):\n        pass\n"
	paths := writeScripts(t, dir, map[string]string{
		"box.py":    original,
		"helper.py": "x = 1\n",
	})

	svc := NewService()
	_, err := svc.Instrument(context.Background(), ports.InstrumentRequest{Paths: paths})
	require.NoError(t, err)

	got, err := svc.Strip(context.Background(), filepath.Join(dir, "box_debug.py"), "")
	require.NoError(t, err)
	assert.Equal(t, original, string(got))
}

func writeTraceLog(t *testing.T, path string) {
	t.Helper()
	_, err := trace.ResetLog(path)
	require.NoError(t, err)

	w, err := trace.OpenLog(path)
	require.NoError(t, err)
	call, depth, err := w.Enter("main", "main")
	require.NoError(t, err)
	c2, d2, err := w.Enter("helper", "run")
	require.NoError(t, err)
	require.NoError(t, w.Exit("helper", "run", c2, d2))
	require.NoError(t, w.Exit("main", "main", call, depth))
	require.NoError(t, w.Close())
}

func TestReformat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")
	writeTraceLog(t, logPath)
	before := readFile(t, logPath)

	svc := NewService()
	res, err := svc.Reformat(context.Background(), ports.ReformatRequest{
		LogPath:    logPath,
		Format:     ports.FormatText,
		OutputPath: logPath + ".txt",
		Indent:     4,
	})
	require.NoError(t, err)
	assert.Equal(t, logPath+".txt", res.OutputPath)
	assert.Equal(t, res.Output, readFile(t, logPath+".txt"))
	assert.Contains(t, res.Output, "main | main [call 1]")
	assert.Contains(t, res.Output, "    helper | run [call 1]")
	assert.Equal(t, 2, res.Reconstruction.TotalCalls())

	mdPath := filepath.Join(dir, "debug_log.md")
	res, err = svc.Reformat(context.Background(), ports.ReformatRequest{
		LogPath:        logPath,
		Format:         ports.FormatMarkdown,
		OutputPath:     mdPath,
		Indent:         2,
		IncludeMermaid: true,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "## Execution Flow")
	assert.Contains(t, res.Output, "```mermaid")
	assert.FileExists(t, mdPath)

	assert.Equal(t, before, readFile(t, logPath), "reformat must not modify the log")
}

func TestReformat_Errors(t *testing.T) {
	dir := t.TempDir()
	svc := NewService()

	bogus := filepath.Join(dir, "other.log")
	require.NoError(t, os.WriteFile(bogus, []byte("hello\n"), 0o644))
	_, err := svc.Reformat(context.Background(), ports.ReformatRequest{LogPath: bogus, Format: ports.FormatText})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidLog), "got %v", err)

	_, err = svc.Reformat(context.Background(), ports.ReformatRequest{LogPath: filepath.Join(dir, "none.log"), Format: ports.FormatText})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidLog), "got %v", err)

	logPath := filepath.Join(dir, "debug.log")
	writeTraceLog(t, logPath)
	_, err = svc.Reformat(context.Background(), ports.ReformatRequest{LogPath: logPath, Format: "html"})
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported), "got %v", err)
}

func TestClearLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")
	writeTraceLog(t, logPath)

	runID, err := NewService().ClearLog(context.Background(), logPath)
	require.NoError(t, err)
	content := readFile(t, logPath)
	assert.Equal(t, trace.Header(runID), content)
	assert.Equal(t, 1, bytes.Count([]byte(content), []byte("\n")))
	assert.True(t, strings.HasPrefix(content, trace.HeaderPrefix))

	_, err = NewService().ClearLog(context.Background(), "")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}
