// Package analyzer is the composition root of the analysis engine: it
// drives candidate probing, the type cache, the oracle, classification and
// hierarchy construction over a single document. All collaborators are
// constructor-injected; independent analyzers never share state.
package analyzer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"flowlens/internal/core/errors"
	"flowlens/internal/core/ports"
	"flowlens/internal/engine/hierarchy"
	"flowlens/internal/engine/operators"
	"flowlens/internal/engine/typecache"
	"flowlens/internal/engine/typestr"
	"flowlens/internal/shared/observability"
	"flowlens/internal/shared/util"
)

const (
	DefaultBatchSize   = 8
	DefaultOracleRate  = 20.0 // queries per second
	DefaultOracleBurst = DefaultBatchSize
)

type Config struct {
	BatchSize   int
	OracleRate  float64
	OracleBurst int
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.OracleRate <= 0 {
		c.OracleRate = DefaultOracleRate
	}
	if c.OracleBurst <= 0 {
		c.OracleBurst = DefaultOracleBurst
	}
}

// Deps are the collaborators an Analyzer composes.
type Deps struct {
	Oracle     ports.TypeOracle
	Structural ports.StructuralParser
	Candidates ports.CandidateSource
	Cache      *typecache.Cache
	Classifier *operators.Classifier
	Logger     *slog.Logger
}

type Analyzer struct {
	cfg        Config
	oracle     ports.TypeOracle
	structural ports.StructuralParser
	candidates ports.CandidateSource
	cache      *typecache.Cache
	classifier *operators.Classifier
	limiter    *util.Limiter
	logger     *slog.Logger
}

func New(cfg Config, deps Deps) (*Analyzer, error) {
	cfg.applyDefaults()
	if deps.Oracle == nil {
		return nil, errors.New(errors.CodeValidationError, "type oracle is required")
	}
	if deps.Structural == nil {
		return nil, errors.New(errors.CodeValidationError, "structural parser is required")
	}
	if deps.Candidates == nil {
		return nil, errors.New(errors.CodeValidationError, "candidate source is required")
	}
	if deps.Cache == nil {
		deps.Cache = typecache.New(typecache.Config{})
	}
	if deps.Classifier == nil {
		deps.Classifier = operators.NewClassifier(operators.Config{})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Analyzer{
		cfg:        cfg,
		oracle:     deps.Oracle,
		structural: deps.Structural,
		candidates: deps.Candidates,
		cache:      deps.Cache,
		classifier: deps.Classifier,
		limiter:    util.NewLimiter(cfg.OracleRate, cfg.OracleBurst),
		logger:     deps.Logger,
	}, nil
}

// LocationInfo is one expression whose execution location was recovered.
type LocationInfo struct {
	OperatorName string
	LocationType string
	Location     typestr.LocationKind
	Range        ports.Range
	Category     operators.Category
}

// AnalyzeDocument probes every candidate position and returns the entries
// with a recovered location.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, doc ports.Document) ([]LocationInfo, error) {
	resolved, err := a.resolve(ctx, doc)
	if err != nil {
		return nil, err
	}

	var out []LocationInfo
	for _, r := range resolved {
		if !r.valid || r.location == nil {
			continue
		}
		out = append(out, LocationInfo{
			OperatorName: r.candidate.Name,
			LocationType: r.location.String(),
			Location:     *r.location,
			Range: ports.Range{
				Start: r.candidate.Position,
				End: ports.Position{
					Line:   r.candidate.Position.Line,
					Column: r.candidate.Position.Column + len(r.candidate.Name),
				},
			},
			Category: a.classifier.Classify(r.candidate.Name),
		})
	}
	return out, nil
}

// DiscoverNodes turns the valid operator call sites of a document into
// hierarchy input nodes. Candidates that are not call sites (bound variable
// names) inform locations but do not become nodes.
func (a *Analyzer) DiscoverNodes(ctx context.Context, doc ports.Document) ([]hierarchy.Node, error) {
	resolved, err := a.resolve(ctx, doc)
	if err != nil {
		return nil, err
	}
	calls := a.operatorCalls(doc)

	var nodes []hierarchy.Node
	for _, r := range resolved {
		call, isCall := calls[r.candidate.Position.Key()]
		if !isCall || !r.valid {
			continue
		}
		pos := r.candidate.Position
		nodes = append(nodes, hierarchy.Node{
			ID:           doc.Path + "#" + pos.Key(),
			ShortLabel:   r.candidate.Name,
			Position:     &pos,
			Location:     r.location,
			TickVariable: call.TickVar,
		})
	}
	observability.GraphNodes.Set(float64(len(nodes)))
	return nodes, nil
}

// BuildHierarchies groups nodes into the location and code trees.
func (a *Analyzer) BuildHierarchies(nodes []hierarchy.Node, doc ports.Document) hierarchy.Result {
	bindings, err := a.structural.VariableBindings(doc)
	if err != nil {
		a.logger.Warn("structural bindings unavailable", "file", doc.Path, "error", err)
	}
	chains, err := a.structural.StandaloneChains(doc)
	if err != nil {
		a.logger.Warn("structural chains unavailable", "file", doc.Path, "error", err)
	}
	builder := &hierarchy.Builder{
		EnclosingFunction: func(pos ports.Position) string {
			return a.structural.EnclosingFunction(doc, pos)
		},
		Logger: a.logger,
	}
	return builder.Build(nodes, bindings, chains, doc.Path)
}

func (a *Analyzer) CacheStats() typecache.Stats {
	return a.cache.Stats()
}

// ClearCache invalidates one file, or everything when fileID is empty.
func (a *Analyzer) ClearCache(fileID string) {
	if fileID == "" {
		a.cache.InvalidateAll()
		return
	}
	a.cache.InvalidateFile(fileID)
}

// operatorCalls indexes every structurally known call site by position.
// Best-effort: a failing structural parse degrades to an empty index.
func (a *Analyzer) operatorCalls(doc ports.Document) map[string]ports.OperatorCall {
	calls := make(map[string]ports.OperatorCall)
	bindings, err := a.structural.VariableBindings(doc)
	if err != nil {
		a.logger.Warn("structural bindings unavailable", "file", doc.Path, "error", err)
	}
	chains, err := a.structural.StandaloneChains(doc)
	if err != nil {
		a.logger.Warn("structural chains unavailable", "file", doc.Path, "error", err)
	}
	for _, binding := range bindings {
		for _, op := range binding.Operators {
			calls[op.Position.Key()] = op
		}
	}
	for _, chain := range chains {
		for _, op := range chain {
			calls[op.Position.Key()] = op
		}
	}
	return calls
}

type resolvedCandidate struct {
	candidate ports.Candidate
	raw       *string
	location  *typestr.LocationKind
	valid     bool
}

// resolve answers the type question for every candidate, hitting the cache
// first and batching oracle queries for the misses.
func (a *Analyzer) resolve(ctx context.Context, doc ports.Document) ([]resolvedCandidate, error) {
	ctx, span := observability.Tracer.Start(ctx, "analyzer.resolve")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	}()

	runID := uuid.NewString()
	a.cache.Sweep()

	candidates, err := a.candidates.Candidates(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "candidate extraction failed")
	}
	a.logger.Debug("analysis started", "run", runID, "file", doc.Path, "candidates", len(candidates))

	resolved := make([]resolvedCandidate, len(candidates))
	var misses []int
	for i, cand := range candidates {
		resolved[i].candidate = cand
		if value, ok := a.cache.Get(doc.Path, cand.Position.Key()); ok {
			resolved[i].raw = value
		} else {
			misses = append(misses, i)
		}
	}

	// Misses go to the oracle in fixed-size batches so outstanding load
	// stays bounded; cancellation is honored between batches.
	for len(misses) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := misses
		if len(batch) > a.cfg.BatchSize {
			batch = batch[:a.cfg.BatchSize]
		}
		misses = misses[len(batch):]

		g, gctx := errgroup.WithContext(ctx)
		for _, idx := range batch {
			idx := idx
			g.Go(func() error {
				if err := a.limiter.Wait(gctx, 1); err != nil {
					return err
				}
				observability.OracleQueriesTotal.Inc()
				value, err := a.oracle.QueryTypeAtPosition(gctx, doc, resolved[idx].candidate.Position)
				if err != nil {
					// A failing oracle is not fatal: remember the absence
					// so a flapping oracle is not hammered.
					observability.OracleFailuresTotal.Inc()
					a.logger.Warn("oracle query failed",
						"run", runID,
						"position", resolved[idx].candidate.Position.Key(),
						"error", errors.Wrap(err, errors.CodeOracleUnavailable, "query failed"))
					value = nil
				}
				resolved[idx].raw = value
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		// Single writer: store after the batch has fully settled.
		for _, idx := range batch {
			a.cache.Put(doc.Path, resolved[idx].candidate.Position.Key(), resolved[idx].raw)
		}
	}

	for i := range resolved {
		a.interpret(&resolved[i])
	}
	return resolved, nil
}

// interpret derives validity and location from the raw oracle text.
func (a *Analyzer) interpret(r *resolvedCandidate) {
	r.valid = a.classifier.IsValidDataflowOperator(r.candidate.Name, r.raw)
	if r.raw == nil {
		return
	}
	text := normalizeOracleText(*r.raw)
	if kind, ok := typestr.ParseLocationType(text); ok {
		// A bare location with no collection wrapper marks a constructor
		// call, already rejected by the validity check; still expose its
		// location for decoration purposes.
		r.location = &kind
	}
}

// normalizeOracleText reduces method-signature hover text to its return
// type, resolving generic parameters from the metadata lines first. Plain
// type strings pass through untouched.
func normalizeOracleText(raw string) string {
	signature, metadata, found := strings.Cut(raw, "\n")
	if !strings.Contains(signature, "fn ") {
		return strings.TrimSpace(raw)
	}
	if found {
		signature = resolveGenericParameters(signature, metadata)
	}
	return returnTypeText(signature)
}
