package graph

import (
	"testing"

	"devcrawl/internal/core/errors"
	"devcrawl/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchGraph_Ambiguity(t *testing.T) {
	first := &parser.Script{Path: "a/util.py", Module: "util"}
	second := &parser.Script{Path: "b/util.py", Module: "util"}

	_, err := NewBatchGraph([]*parser.Script{first, second})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeAmbiguousModule))
	assert.Contains(t, err.Error(), "a/util.py")
	assert.Contains(t, err.Error(), "b/util.py")
}

func TestNewBatchGraph_OnlyBatchMembersLinked(t *testing.T) {
	main := script("main", "helper", "requests", "helper")
	main.Imports = append(main.Imports, parser.ImportStatement{
		Kind:   parser.ImportFrom,
		Dots:   1,
		Module: &parser.Span{Text: "config"},
	})
	g, err := NewBatchGraph([]*parser.Script{main, script("helper"), script("config")})
	require.NoError(t, err)

	assert.Equal(t, []string{"helper", "config"}, g.Dependencies("main"))
	assert.Equal(t, []string{"main"}, g.Dependents("helper"))
	assert.Equal(t, 2, g.EdgeCount())
	assert.True(t, g.Has("config"))
	assert.False(t, g.Has("requests"))
	assert.Equal(t, []string{"main", "helper", "config"}, g.Modules())

	edges := g.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "main", edges[0].From)
	assert.Equal(t, "helper", edges[0].To)

	s, ok := g.Lookup("helper")
	require.True(t, ok)
	assert.Equal(t, "helper.py", s.Path)
}
