package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/automata/internal/ir"
)

var frozen = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func chainManifest() *ir.Manifest {
	return &ir.Manifest{Definitions: []ir.DefinitionSource{
		def("A", "A: a"),
		def("B", "B: b", "A"),
		def("C", "C: c", "B"),
	}}
}

func TestRebuild_EmptyPreviousRebuildsAll(t *testing.T) {
	p := newStubParser()
	res, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	assert.Equal(t, keyList("A", "B", "C"), res.Keys(StatusRebuilt))
	assert.Empty(t, res.Keys(StatusReused))
	for _, key := range keyList("A", "B", "C") {
		assert.True(t, res.Current[key].Rebuilt)
		assert.Same(t, res.Current[key].Graph, res.Table[key])
	}
	assert.Len(t, p.built, 3)
}

func TestRebuild_IdenticalManifestReusesAll(t *testing.T) {
	p := newStubParser()
	first, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	p.built = nil
	second, err := rebuild(p, chainManifest(), first.Current, true, true, frozen)
	require.NoError(t, err)

	assert.Empty(t, p.built, "nothing is parsed again")
	assert.Equal(t, keyList("A", "B", "C"), second.Keys(StatusReused))
	for _, key := range keyList("A", "B", "C") {
		prev, cur := first.Current[key], second.Current[key]
		assert.False(t, cur.Rebuilt)
		assert.Equal(t, prev.Text, cur.Text)
		assert.Same(t, prev.Graph, cur.Graph, "reused entries share the cached graph")
	}
}

func TestRebuild_WhitespaceOnlyChangeIsReused(t *testing.T) {
	p := newStubParser()
	first, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	m := chainManifest()
	m.Definitions[0].Text = "A:   a  "
	second, err := rebuild(p, m, first.Current, true, true, frozen)
	require.NoError(t, err)
	assert.Equal(t, keyList("A", "B", "C"), second.Keys(StatusReused))
}

func TestRebuild_DependencyClosure(t *testing.T) {
	tests := []struct {
		name    string
		changed int
		rebuilt []ir.DefinitionKey
		reused  []ir.DefinitionKey
	}{
		{"root change rebuilds dependents", 0, keyList("A", "B", "C"), keyList()},
		{"middle change", 1, keyList("B", "C"), keyList("A")},
		{"leaf change", 2, keyList("C"), keyList("A", "B")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newStubParser()
			first, err := rebuild(p, chainManifest(), nil, true, true, frozen)
			require.NoError(t, err)

			m := chainManifest()
			m.Definitions[tt.changed].Text += " changed"
			res, err := rebuild(p, m, first.Current, true, true, frozen)
			require.NoError(t, err)

			assert.Equal(t, tt.rebuilt, res.Keys(StatusRebuilt))
			assert.Equal(t, tt.reused, res.Keys(StatusReused))
		})
	}
}

func TestRebuild_LiveBuildingOffForcesRebuild(t *testing.T) {
	p := newStubParser()
	first, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	res, err := rebuild(p, chainManifest(), first.Current, false, true, frozen)
	require.NoError(t, err)
	assert.Equal(t, keyList("A", "B", "C"), res.Keys(StatusRebuilt))
}

func TestRebuild_DroppedKeysDoNotSurvive(t *testing.T) {
	p := newStubParser()
	first, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	m := &ir.Manifest{Definitions: []ir.DefinitionSource{def("A", "A: a")}}
	res, err := rebuild(p, m, first.Current, true, true, frozen)
	require.NoError(t, err)

	assert.Len(t, res.Current, 1)
	assert.Contains(t, res.Current, ir.DefinitionKey("A"))
	assert.NotContains(t, res.Table, ir.DefinitionKey("B"))
}

func TestRebuild_UndefinedDependency(t *testing.T) {
	p := newStubParser()
	m := &ir.Manifest{Definitions: []ir.DefinitionSource{
		def("A", "A: a"),
		def("Lamp", "Lamp: x", "Ghost"),
		def("Room", "Room: r", "Lamp"),
		def("Hall", "Hall: h", "Room"),
	}}

	res, err := rebuild(p, m, nil, true, true, frozen)
	require.NoError(t, err, "a missing dependency never aborts the pass")

	assert.Equal(t, keyList("A"), res.Keys(StatusRebuilt))
	assert.Equal(t, keyList("Lamp"), res.Keys(StatusFailed))
	assert.Equal(t, keyList("Room", "Hall"), res.Keys(StatusSkipped))
	assert.NotContains(t, res.Current, ir.DefinitionKey("Lamp"))
	assert.NotContains(t, res.Current, ir.DefinitionKey("Room"))

	var de *DependencyError
	require.ErrorAs(t, res.Outcomes[1].Err, &de)
	assert.Equal(t, ir.DefinitionKey("Ghost"), de.Dependency)
	assert.True(t, IsDependencyError(res.Outcomes[2].Err))

	assert.Equal(t, []string{
		"Interpretation failed after 0.001 seconds.",
		`  Lamp: dependency "Ghost" of "Lamp" is undefined`,
	}, res.Failures)
	assert.Equal(t, []string{"A: States - 2, Transitions - 1"}, res.Sizes)
}

func TestRebuild_CachedKeyFailsWhenDependencyRemoved(t *testing.T) {
	p := newStubParser()
	first, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	m := &ir.Manifest{Definitions: []ir.DefinitionSource{def("B", "B: b", "A")}}
	res, err := rebuild(p, m, first.Current, true, true, frozen)
	require.NoError(t, err)
	assert.Equal(t, keyList("B"), res.Keys(StatusFailed))
}

func TestRebuild_ParserDependencyErrorIsPerKey(t *testing.T) {
	p := newStubParser()
	p.errs["B: b"] = &DependencyError{Key: "B", Dependency: "Hidden"}

	res, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)
	assert.Equal(t, keyList("B"), res.Keys(StatusFailed))
	assert.Equal(t, keyList("C"), res.Keys(StatusSkipped))
}

func TestRebuild_OtherParserErrorsPropagate(t *testing.T) {
	p := newStubParser()
	boom := errors.New("boom")
	p.errs["B: b"] = boom

	_, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to build B")
}

func TestRebuild_RenderJobsMostRecentFirst(t *testing.T) {
	res, err := rebuild(newStubParser(), chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	var order []ir.DefinitionKey
	for _, job := range res.Jobs {
		order = append(order, job.Key)
	}
	assert.Equal(t, keyList("C", "B", "A"), order)
}

func TestRebuild_RenderThreshold(t *testing.T) {
	p := newStubParser()
	p.graphs["small"] = chainGraph(ir.RenderThreshold - 1)
	p.graphs["large"] = chainGraph(ir.RenderThreshold)
	m := &ir.Manifest{Definitions: []ir.DefinitionSource{
		def("Small", "small"),
		def("Large", "large"),
	}}

	res, err := rebuild(p, m, nil, true, true, frozen)
	require.NoError(t, err)

	require.Len(t, res.Jobs, 1)
	assert.Equal(t, ir.DefinitionKey("Small"), res.Jobs[0].Key)
	assert.Equal(t, []string{
		"Small: States - 99, Transitions - 98",
		"Large: States - 100, Transitions - 99 (Too large to render)",
	}, res.Sizes)

	assert.Equal(t, []string{"s98"}, res.Jobs[0].Graph.StopNodes(), "stop nodes marked before rendering")
	assert.Empty(t, res.Current["Large"].Graph.StopNodes(), "large graphs are left unmarked")
}

func TestCoordinator_RotatesOnlyOnSuccess(t *testing.T) {
	p := newStubParser()
	c := NewCoordinator(p, frozen)
	assert.Nil(t, c.Current())

	first, err := c.Rebuild(chainManifest(), true, true)
	require.NoError(t, err)
	assert.Equal(t, first.Current, c.Current())
	assert.Nil(t, c.Previous())

	p.errs["A: broken"] = errors.New("syntax")
	m := chainManifest()
	m.Definitions[0].Text = "A: broken"
	_, err = c.Rebuild(m, true, true)
	require.Error(t, err)
	assert.Equal(t, first.Current, c.Current(), "failed pass leaves generations untouched")

	second, err := c.Rebuild(chainManifest(), true, true)
	require.NoError(t, err)
	assert.Equal(t, second.Current, c.Current())
	assert.Equal(t, first.Current, c.Previous())
}

func TestCoordinator_ResetAndSeed(t *testing.T) {
	p := newStubParser()
	c := NewCoordinator(p, frozen)
	first, err := c.Rebuild(chainManifest(), true, true)
	require.NoError(t, err)

	c.Reset()
	assert.Nil(t, c.Current())
	assert.Nil(t, c.Previous())

	c.Seed(first.Current)
	res, err := c.Rebuild(chainManifest(), true, true)
	require.NoError(t, err)
	assert.Equal(t, keyList("A", "B", "C"), res.Keys(StatusReused), "seeded build serves as cache")
}

func TestRebuild_ReusedGraphIsNotMutated(t *testing.T) {
	p := newStubParser()
	first, err := rebuild(p, chainManifest(), nil, true, true, frozen)
	require.NoError(t, err)

	cached := first.Current["A"].Graph
	for i := range cached.Nodes {
		cached.Nodes[i].Stop = false
	}

	second, err := rebuild(p, chainManifest(), first.Current, true, true, frozen)
	require.NoError(t, err)

	assert.Same(t, cached, second.Current["A"].Graph)
	assert.Empty(t, cached.StopNodes(), "cached graph left as it was")

	var job ir.RenderJob
	for _, j := range second.Jobs {
		if j.Key == "A" {
			job = j
		}
	}
	require.NotNil(t, job.Graph)
	assert.NotSame(t, cached, job.Graph)
	assert.Equal(t, []string{"s1"}, job.Graph.StopNodes())
}
