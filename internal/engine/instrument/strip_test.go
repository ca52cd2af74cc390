package instrument

import (
	"testing"

	"devcrawl/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrip_RestoresOriginal(t *testing.T) {
	registry := batch{"helper": true, "peer": true, "main": true}
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"comments only", "# nothing here\n"},
		{"docstring without final newline", `"""Just a docstring."""`},
		{"statement without final newline", "import helper\nx = helper.run()"},
		{"crlf", "\"\"\"doc\"\"\"\r\nimport helper\r\n\r\ndef main():\r\n    return helper.run()\r\n"},
		{"future import", "from __future__ import annotations\nimport peer\n\ndef f() -> int:\n    return 1\n"},
		{"nested and async", `import asyncio
from . import peer
from .helper import run as go, stop


class Worker:
    @staticmethod
    async def fetch(url):
        await asyncio.sleep(0)
        return url

    def loop(self):
        def step(n):
            yield n
        return list(step(3))


def main():
    """Runs everything."""
    text = """
def not_a_function():
    pass
"""
    return Worker().loop(), text
`},
		{"multiline import", "from helper import (\n    run,  # first\n    stop,\n)\nimport os, helper as h, peer\n"},
		{"semicolons", "import helper; import peer\n"},
		{"string opened after import", "import helper; S = \"\"\"\nx\"\"\"\nprint(S)\n"},
		{"string continued after import", "import helper; S = \"x\\\ny\"\nprint(S)\n"},
		{"notes and markers", "import os\nimport peer; T = '''\n'''\nimport helper\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out := instrumentSource(t, "main.py", tt.code, registry, Options{Sink: "debug.log"})
			require.NotEqual(t, tt.code, out)

			restored, err := Strip(parser.NewParser(), "main_debug.py", []byte(out), "")
			require.NoError(t, err)
			assert.Equal(t, tt.code, string(restored))
		})
	}
}

func TestStrip_UnterminatedPrelude(t *testing.T) {
	src := MarkerBegin + "\nimport sys as _devcrawl_sys\n"
	_, err := Strip(parser.NewParser(), "x_debug.py", []byte(src), "")
	assert.Error(t, err)
}

func TestStrip_MismatchedImportMarker(t *testing.T) {
	src := "import os  # devcrawl:import helper+as\n"
	_, err := Strip(parser.NewParser(), "x_debug.py", []byte(src), "")
	assert.Error(t, err)
}

func TestStrip_MalformedImportNote(t *testing.T) {
	src := MarkerBegin + "\n" + MarkerImportAt + " first helper\n" + MarkerEnd + "\nimport helper_debug as helper\n"
	_, err := Strip(parser.NewParser(), "x_debug.py", []byte(src), "")
	assert.Error(t, err)
}

func TestStrip_UntouchedSource(t *testing.T) {
	src := "import os\n\ndef f():\n    return os.sep\n"
	out, err := Strip(parser.NewParser(), "plain.py", []byte(src), "")
	require.NoError(t, err)
	assert.Equal(t, src, string(out))
}
