package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askpdf/server/internal/vectorstore"
)

func match(source, content string) vectorstore.Match {
	return vectorstore.Match{Chunk: vectorstore.Chunk{Source: source, Content: content}, Score: 1}
}

func TestBuildContext(t *testing.T) {
	cb := NewContextBuilder(0)
	got := cb.BuildContext([]vectorstore.Match{match("a.pdf", "first"), match("b.pdf", "second")})
	assert.Equal(t, "first\n\nsecond", got)
	assert.Empty(t, cb.BuildContext(nil))
}

func TestBuildContext_Truncates(t *testing.T) {
	cb := NewContextBuilder(5)
	got := cb.BuildContext([]vectorstore.Match{match("a.pdf", "héllo wörld")})
	assert.True(t, strings.HasPrefix(got, "héllo"))
	assert.True(t, strings.HasSuffix(got, "[Context truncated...]"))
}

func TestSources(t *testing.T) {
	matches := []vectorstore.Match{match("a.pdf", "one"), match("", "two"), match("a.pdf", "three")}

	sources := Sources(matches)
	assert.Equal(t, []Source{
		{Source: "a.pdf", PageContent: "one"},
		{Source: "Unknown", PageContent: "two"},
		{Source: "a.pdf", PageContent: "three"},
	}, sources)

	assert.Equal(t, []string{"a.pdf", "", "a.pdf"}, SourceNames(matches))
	assert.NotNil(t, Sources(nil))
}
