package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceHash_Stable(t *testing.T) {
	a := SourceHash("process: A: transitions: []")
	b := SourceHash("process: A: transitions: []")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSourceHash_DiffersOnContent(t *testing.T) {
	assert.NotEqual(t, SourceHash("a"), SourceHash("b"))
}

func TestDefinitionHash_IgnoresWhitespaceRuns(t *testing.T) {
	a := MustDefinitionHash(DefinitionSource{Key: "A", Text: "A: {x:  1}"})
	b := MustDefinitionHash(DefinitionSource{Key: "A", Text: "A: {x: 1}"})
	assert.Equal(t, a, b)
}

func TestDefinitionHash_IncludesDependencies(t *testing.T) {
	a := MustDefinitionHash(DefinitionSource{Key: "B", Text: "B: {}"})
	b := MustDefinitionHash(DefinitionSource{Key: "B", Text: "B: {}", Dependencies: []DefinitionKey{"A"}})
	assert.NotEqual(t, a, b)
}

func TestDefinitionHash_DomainSeparated(t *testing.T) {
	// The same bytes hashed under different domains must not collide.
	assert.NotEqual(t, hashWithDomain(DomainSource, []byte("x")), hashWithDomain(DomainDefinition, []byte("x")))
}
