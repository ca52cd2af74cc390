package parser

import (
	"sync"
	"testing"
)

func TestParserPool_LeaseAccounting(t *testing.T) {
	pool := newParserPool(PythonLanguage())

	a := pool.Get()
	b := pool.Get()
	if pool.Leased() != 2 {
		t.Fatalf("expected 2 leased parsers, got %d", pool.Leased())
	}
	pool.Put(a)
	pool.Put(b)
	pool.Put(nil)
	if pool.Leased() != 0 {
		t.Fatalf("expected no leased parsers, got %d", pool.Leased())
	}
}

func TestParserPool_LanguageSetAfterReset(t *testing.T) {
	pool := newParserPool(PythonLanguage())

	sp := pool.Get()
	sp.Reset()
	pool.Put(sp)

	sp = pool.Get()
	defer pool.Put(sp)
	tree := sp.Parse([]byte("def ok(): ...\n"), nil)
	if tree == nil {
		t.Fatal("expected a tree after reset")
	}
	defer tree.Close()
	if tree.RootNode().HasError() {
		t.Fatal("expected error-free parse")
	}
}

func TestParser_ConcurrentParse(t *testing.T) {
	p := NewParser()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				script, err := p.ParseScript("job.py", []byte("import helper\n\ndef run():\n    return helper.x\n"))
				if err != nil {
					t.Errorf("parse failed: %v", err)
					return
				}
				if len(script.Functions) != 1 || len(script.Imports) != 1 {
					t.Errorf("unexpected extraction: %d functions, %d imports", len(script.Functions), len(script.Imports))
					return
				}
			}
		}()
	}
	wg.Wait()

	if p.pool.Leased() != 0 {
		t.Fatalf("parsers leaked: %d", p.pool.Leased())
	}
}
