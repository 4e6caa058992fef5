// Package operators classifies call-site names into dataflow operator
// categories and decides whether a call site is a genuine dataflow operator
// at all. The registry is constructor-injected configuration; there is no
// package-level mutable state.
package operators

import (
	"strings"

	"flowlens/internal/engine/typestr"
)

type Category string

const (
	CategorySource      Category = "source"
	CategorySink        Category = "sink"
	CategoryJoin        Category = "join"
	CategoryAggregation Category = "aggregation"
	CategoryNetwork     Category = "network"
	CategoryTee         Category = "tee"
	CategoryTransform   Category = "transform"
)

// sourcePrefix catches the source_* constructor family without enumerating it.
const sourcePrefix = "source_"

// networkMarkers appear in the names of serializing network operators
// (send_bincode, broadcast_bytes, ...).
var networkMarkers = []string{"bincode", "bytes"}

var defaultSources = []string{
	"source_iter", "source_stream", "source_interval", "spin",
}

var defaultSinks = []string{
	"for_each", "dest_sink",
}

var defaultJoins = []string{
	"join", "cross_join", "cross_product", "cross_singleton",
	"difference", "anti_join", "zip", "union",
}

var defaultNetworking = []string{
	"send_bincode", "send_bytes", "broadcast_bincode", "broadcast_bytes",
	"round_robin_bincode", "demux_bincode", "send_partitioned",
	"decouple_cluster", "decouple_process",
}

var defaultAggregations = []string{
	"fold", "reduce", "fold_keyed", "reduce_keyed",
	"fold_commutative", "reduce_commutative", "count", "max", "min",
}

var defaultTees = []string{
	"tee", "clone", "persist",
}

// defaultTransforms only feeds the closed-world known-operator check; any
// name outside every set still classifies as a transform by default.
var defaultTransforms = []string{
	"map", "filter", "filter_map", "flat_map", "inspect", "unique",
	"enumerate", "sort", "batch", "all_ticks", "snapshot", "entries",
	"values", "keys", "into_keyed", "flatten", "assume_ordering",
	"delta", "defer_tick", "sample_every",
}

// Config extends the built-in registry with project-specific operator names.
type Config struct {
	ExtraSources      []string
	ExtraSinks        []string
	ExtraJoins        []string
	ExtraNetworking   []string
	ExtraAggregations []string
	ExtraTees         []string
	ExtraTransforms   []string
}

type Classifier struct {
	sources      map[string]bool
	sinks        map[string]bool
	joins        map[string]bool
	networking   map[string]bool
	aggregations map[string]bool
	tees         map[string]bool
	transforms   map[string]bool
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		sources:      toSet(defaultSources, cfg.ExtraSources),
		sinks:        toSet(defaultSinks, cfg.ExtraSinks),
		joins:        toSet(defaultJoins, cfg.ExtraJoins),
		networking:   toSet(defaultNetworking, cfg.ExtraNetworking),
		aggregations: toSet(defaultAggregations, cfg.ExtraAggregations),
		tees:         toSet(defaultTees, cfg.ExtraTees),
		transforms:   toSet(defaultTransforms, cfg.ExtraTransforms),
	}
}

func toSet(groups ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, group := range groups {
		for _, name := range group {
			name = strings.TrimSpace(name)
			if name != "" {
				set[name] = true
			}
		}
	}
	return set
}

// Classify is priority-ordered and first-match-wins; everything unknown is a
// transform.
func (c *Classifier) Classify(name string) Category {
	switch {
	case c.sources[name] || strings.HasPrefix(name, sourcePrefix):
		return CategorySource
	case c.sinks[name]:
		return CategorySink
	case c.joins[name]:
		return CategoryJoin
	case c.IsNetworking(name):
		return CategoryNetwork
	case c.aggregations[name]:
		return CategoryAggregation
	case c.tees[name]:
		return CategoryTee
	default:
		return CategoryTransform
	}
}

func (c *Classifier) IsNetworking(name string) bool {
	if c.networking[name] {
		return true
	}
	for _, marker := range networkMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func (c *Classifier) IsSink(name string) bool {
	return c.sinks[name]
}

// IsKnown reports whether a name belongs to any registered operator family.
func (c *Classifier) IsKnown(name string) bool {
	return c.sources[name] || c.sinks[name] || c.joins[name] ||
		c.networking[name] || c.aggregations[name] || c.tees[name] ||
		c.transforms[name] || strings.HasPrefix(name, sourcePrefix)
}

// IsValidDataflowOperator decides whether a call site is part of the
// dataflow graph. Without a return type only independently known names are
// accepted. With one, the return must mention a dataflow container or be a
// unit-ish sink return; networking operators pass regardless because the
// oracle's text for generic network calls is often unresolved. A return type
// that is exactly a location kind is a location-constructor call, not an
// operator.
func (c *Classifier) IsValidDataflowOperator(name string, returnType *string) bool {
	if returnType == nil {
		return c.IsKnown(name)
	}
	text := strings.TrimSpace(*returnType)
	if typestr.ContainsCollectionWrapper(text) {
		return true
	}
	if denotesUnitReturn(text) {
		return true
	}
	return c.IsNetworking(name)
}

// denotesUnitReturn matches the textual spellings of a unit/void return the
// oracle produces for sink calls.
func denotesUnitReturn(text string) bool {
	if text == "()" {
		return true
	}
	for _, marker := range []string{"-> ()", "->()", "Output = ()", "Result<(),"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
