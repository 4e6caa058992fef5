package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"flowlens/internal/core/ports"
	"flowlens/internal/engine/hierarchy"
	"flowlens/internal/engine/structure"
	"flowlens/internal/engine/typecache"
)

// countingOracle serves canned types keyed by candidate name and records
// how often each position is queried.
type countingOracle struct {
	mu    sync.Mutex
	byPos map[string]string
	calls map[string]int
	err   error
}

func (o *countingOracle) QueryTypeAtPosition(_ context.Context, _ ports.Document, pos ports.Position) (*string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[pos.Key()]++
	if o.err != nil {
		return nil, o.err
	}
	text, ok := o.byPos[pos.Key()]
	if !ok {
		return nil, nil
	}
	return &text, nil
}

func (o *countingOracle) totalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.calls {
		total += n
	}
	return total
}

var fixtureTypes = map[string]string{
	"process":     "Process<'a, ()>",
	"source_iter": "Stream<i32, Process<'a, ()>, Unbounded>",
	"map":         "Stream<i32, Process<'a, ()>, Unbounded>",
	"for_each":    "()",
}

// newFixtureSetup wires a real structural parser over a Hydro fixture with
// an oracle whose answers are keyed off the parser's own candidate
// positions.
func newFixtureSetup(t *testing.T, fixture string) (*Analyzer, ports.Document, *countingOracle) {
	t.Helper()
	content, err := os.ReadFile(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	doc := ports.Document{Path: fixture, Content: content}

	parser := structure.NewParser()
	candidates, err := parser.Candidates(doc)
	require.NoError(t, err)

	orc := &countingOracle{byPos: make(map[string]string), calls: make(map[string]int)}
	for _, cand := range candidates {
		if text, ok := fixtureTypes[cand.Name]; ok {
			orc.byPos[cand.Position.Key()] = text
		}
	}

	a, err := New(Config{BatchSize: 2}, Deps{
		Oracle:     orc,
		Structural: parser,
		Candidates: parser,
		Cache:      typecache.New(typecache.Config{}),
	})
	require.NoError(t, err)
	return a, doc, orc
}

func TestAnalyzeDocument_SimpleFlow(t *testing.T) {
	a, doc, _ := newFixtureSetup(t, "simple_flows.rs")

	infos, err := a.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)

	// source_iter and map carry a stream location; for_each returns unit
	// (no location) and the flow.process() constructor call plus the bound
	// variable are rejected by the validity check.
	require.Len(t, infos, 2)
	for _, info := range infos {
		require.Equal(t, "Process<()>", info.LocationType)
		require.Contains(t, []string{"source_iter", "map"}, info.OperatorName)
	}
}

func TestAnalyzeDocument_CachesAcrossRuns(t *testing.T) {
	a, doc, orc := newFixtureSetup(t, "simple_flows.rs")
	ctx := context.Background()

	_, err := a.AnalyzeDocument(ctx, doc)
	require.NoError(t, err)
	queries := orc.totalCalls()
	require.Greater(t, queries, 0)

	// A repeat analysis within the TTL is answered entirely from cache.
	_, err = a.AnalyzeDocument(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, queries, orc.totalCalls())

	for pos, n := range orc.calls {
		require.Equal(t, 1, n, "position %s queried more than once", pos)
	}

	// Invalidation brings the oracle back into play.
	a.ClearCache(doc.Path)
	_, err = a.AnalyzeDocument(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, 2*queries, orc.totalCalls())
}

func TestAnalyzeDocument_OracleFailureIsNotFatal(t *testing.T) {
	a, doc, orc := newFixtureSetup(t, "simple_flows.rs")
	orc.err = errors.New("oracle offline")

	infos, err := a.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Empty(t, infos)

	// Failures are cached as absent answers so the oracle is not hammered.
	queries := orc.totalCalls()
	orc.err = nil
	_, err = a.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, queries, orc.totalCalls())
}

func TestAnalyzeDocument_Cancellation(t *testing.T) {
	a, doc, _ := newFixtureSetup(t, "simple_flows.rs")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.AnalyzeDocument(ctx, doc)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscoverNodesAndHierarchies(t *testing.T) {
	a, doc, _ := newFixtureSetup(t, "simple_flows.rs")

	nodes, err := a.DiscoverNodes(context.Background(), doc)
	require.NoError(t, err)

	// source_iter, map and for_each are valid call sites; the process()
	// constructor is not part of the dataflow graph.
	labels := make(map[string]hierarchy.Node)
	for _, n := range nodes {
		labels[n.ShortLabel] = n
	}
	require.Len(t, nodes, 3)
	require.NotContains(t, labels, "process")
	require.Nil(t, labels["for_each"].Location)
	require.NotNil(t, labels["map"].Location)

	result := a.BuildHierarchies(nodes, doc)
	require.Equal(t, hierarchy.HierarchyLocation, result.Selected)
	require.Len(t, result.Assignments.Location, 3)
	require.Len(t, result.Assignments.Code, 3)

	var names []string
	for _, c := range result.Location.Children {
		names = append(names, c.Name)
	}
	require.Contains(t, names, "Process")
	require.Contains(t, names, hierarchy.UnknownLocationName)
}

func TestCacheStats(t *testing.T) {
	a, doc, _ := newFixtureSetup(t, "simple_flows.rs")

	require.Zero(t, a.CacheStats().TotalEntries)
	_, err := a.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)

	stats := a.CacheStats()
	require.Equal(t, 1, stats.NumFiles)
	require.Greater(t, stats.TotalEntries, 0)

	a.ClearCache("")
	require.Zero(t, a.CacheStats().TotalEntries)
}
