package instrument

import (
	"strings"
	"testing"

	"devcrawl/internal/core/errors"
	"devcrawl/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batch map[string]bool

func (b batch) Has(module string) bool { return b[module] }

func instrumentSource(t *testing.T, path, code string, registry Registry, opts Options) (*Result, string) {
	t.Helper()
	script, err := parser.NewParser().ParseScript(path, []byte(code))
	require.NoError(t, err)

	tr, err := NewTransformer(registry, opts)
	require.NoError(t, err)
	res, err := tr.Transform(script)
	require.NoError(t, err)

	out, err := res.Render()
	require.NoError(t, err)
	return res, string(out)
}

func TestTransform_InstrumentsEveryFunction(t *testing.T) {
	code := `"""Entry point."""
import os
import helper


def main():
    return helper.run(os.getcwd())


class Job:
    @property
    def name(self):
        return "job"
`
	res, out := instrumentSource(t, "/work/run.py", code, batch{"run": true, "helper": true}, Options{})

	require.Len(t, res.Instrumented, 2)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Rewrites, 1)
	assert.Equal(t, "helper", res.Rewrites[0].Module)
	assert.True(t, res.Rewrites[0].AddedAlias)

	assert.True(t, strings.HasPrefix(out, "\"\"\"Entry point.\"\"\"\n"+MarkerBegin+"\n"), out)
	assert.Contains(t, out, MarkerEnd+"\nimport os\n")
	assert.Contains(t, out, "import helper_debug as helper  # devcrawl:import helper+as\n")
	assert.Contains(t, out, "@_devcrawl_trace.traced(\"run\", \"main\")  # devcrawl:injected\ndef main():\n")
	assert.Contains(t, out, "    @property\n    @_devcrawl_trace.traced(\"run\", \"Job.name\")  # devcrawl:injected\n    def name(self):\n")

	require.NoError(t, parser.NewParser().Validate("/work/run_debug.py", []byte(out)))
}

func TestTransform_ImportForms(t *testing.T) {
	registry := batch{"helper": true, "peer": true}
	tests := []struct {
		name string
		line string
		want string
	}{
		{"plain", "import helper", "import helper_debug as helper  # devcrawl:import helper+as"},
		{"aliased", "import helper as h", "import helper_debug as h  # devcrawl:import helper"},
		{"from", "from helper import run, stop", "from helper_debug import run, stop  # devcrawl:import helper"},
		{"relative from", "from .helper import run", "from .helper_debug import run  # devcrawl:import helper"},
		{"from dot", "from . import peer", "from . import peer_debug as peer  # devcrawl:import peer+as"},
		{"mixed", "import os, helper, peer as p", "import os, helper_debug as helper, peer_debug as p  # devcrawl:import helper+as peer"},
		{"outside batch", "import requests", "import requests"},
		{"dotted outside batch", "from helper.sub import x", "from helper.sub import x"},
		{"trailing comment", "import helper  # needed", "import helper_debug as helper  # needed  # devcrawl:import helper+as"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := "x = 1\n" + tt.line + "\n"
			_, out := instrumentSource(t, "main.py", code, registry, Options{})
			assert.True(t, strings.HasSuffix(out, "x = 1\n"+tt.want+"\n"), out)
		})
	}
}

func TestTransform_MultilineImportMarkerOnClosingLine(t *testing.T) {
	code := "from helper import (\n    run,\n    stop,\n)\n"
	_, out := instrumentSource(t, "main.py", code, batch{"helper": true}, Options{})
	assert.True(t, strings.HasSuffix(out, "from helper_debug import (\n    run,\n    stop,\n)  # devcrawl:import helper\n"), out)
}

func TestTransform_ImportBeforeMultilineString(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"triple quoted", "import helper; S = \"\"\"\nx\"\"\"\n"},
		{"backslash continued", "import helper; S = \"x\\\ny\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out := instrumentSource(t, "main.py", tt.code, batch{"helper": true}, Options{})
			assert.NotContains(t, out, "  "+MarkerImport+" ")
			assert.Contains(t, out, MarkerBegin+"\n"+MarkerImportAt+" 0 helper+as\n")
			assert.True(t, strings.HasSuffix(out, strings.Replace(tt.code, "import helper", "import helper_debug as helper", 1)), out)
		})
	}
}

func TestTransform_SkipFunctions(t *testing.T) {
	code := `def keep():
    pass


def test_one():
    pass


class Box:
    def _hidden(self):
        pass

    def shown(self):
        pass
`
	res, out := instrumentSource(t, "box.py", code, batch{}, Options{SkipFunctions: []string{"test_*", "Box._*"}})

	var skipped []string
	for _, fn := range res.Skipped {
		skipped = append(skipped, fn.QualName)
	}
	assert.Equal(t, []string{"test_one", "Box._hidden"}, skipped)
	assert.Len(t, res.Instrumented, 2)
	assert.NotContains(t, out, "\"test_one\"")
	assert.Contains(t, out, "traced(\"box\", \"Box.shown\")")
}

func TestTransform_CRLFAndSink(t *testing.T) {
	code := "import os\r\n\r\ndef main():\r\n    pass\r\n"
	_, out := instrumentSource(t, "main.py", code, batch{}, Options{Sink: "/tmp/debug.log"})

	assert.Contains(t, out, MarkerBegin+"\r\n")
	assert.Contains(t, out, "tracer(\"/tmp/debug.log\")\r\n")
	assert.Contains(t, out, "# devcrawl:injected\r\ndef main():")
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n")
}

func TestTransform_RefusesInstrumentedInput(t *testing.T) {
	p := parser.NewParser()
	tr, err := NewTransformer(batch{}, Options{})
	require.NoError(t, err)

	script, err := p.ParseScript("run_debug.py", []byte("x = 1\n"))
	require.NoError(t, err)
	_, err = tr.Transform(script)
	assert.True(t, errors.IsCode(err, errors.CodeReentrant))

	_, out := instrumentSource(t, "run.py", "def f():\n    pass\n", batch{}, Options{})
	script, err = p.ParseScript("copy.py", []byte(out))
	require.NoError(t, err)
	_, err = tr.Transform(script)
	assert.True(t, errors.IsCode(err, errors.CodeReentrant))
}

func TestApply_RejectsOverlap(t *testing.T) {
	src := []byte("abcdef")
	out, err := Apply(src, []Edit{{Start: 4, End: 4, Text: "X"}, {Start: 1, End: 3, Text: "Y"}})
	require.NoError(t, err)
	assert.Equal(t, "aYdXef", string(out))

	_, err = Apply(src, []Edit{{Start: 1, End: 4}, {Start: 2, End: 3}})
	assert.Error(t, err)
	_, err = Apply(src, []Edit{{Start: 5, End: 9}})
	assert.Error(t, err)
}
