package instrument

import (
	"bytes"
	"testing"

	"devcrawl/internal/engine/parser"
)

func FuzzStripRoundTrip(f *testing.F) {
	f.Add([]byte("import helper\n\ndef main():\n    helper.run()\n"))
	f.Add([]byte("\"\"\"Doc.\"\"\"\nfrom __future__ import annotations\nfrom helper import run as go\n\nclass A:\n    def m(self):\n        pass\n"))
	f.Add([]byte("import os, helper as h\r\n\r\nasync def main():\r\n    await h.x()\r\n"))

	p := parser.NewParser()
	registry := batch{"helper": true}
	f.Fuzz(func(t *testing.T, data []byte) {
		script, err := p.ParseScript("main.py", data)
		if err != nil {
			return
		}
		tr, err := NewTransformer(registry, Options{Sink: "/tmp/debug.log"})
		if err != nil {
			t.Fatal(err)
		}
		res, err := tr.Transform(script)
		if err != nil {
			return
		}
		out, err := res.Render()
		if err != nil {
			return
		}
		back, err := Strip(p, "main_debug.py", out, DefaultSuffix)
		if err != nil {
			t.Fatalf("strip: %v", err)
		}
		if !bytes.Equal(back, data) {
			t.Fatalf("round trip mismatch:\n%q\n%q", data, back)
		}
	})
}
