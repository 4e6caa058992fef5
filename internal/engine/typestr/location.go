package typestr

import (
	"fmt"
	"strings"
)

// LocationKind identifies where a dataflow computation runs. It is the
// canonical form of a raw subject-language type: lifetimes are erased and
// Tick nesting is kept as an explicit depth instead of textual wrappers.
type LocationKind struct {
	Kind      string // Process, Cluster or External
	Param     string // type parameter, may be "()" or empty for the bare form
	TickDepth int    // number of Tick<> layers around the location
}

const (
	KindProcess  = "Process"
	KindCluster  = "Cluster"
	KindExternal = "External"
)

// Base renders the location without its Tick nesting, e.g. "Process<Leader>".
func (k LocationKind) Base() string {
	if k.Param == "" {
		return k.Kind
	}
	return fmt.Sprintf("%s<%s>", k.Kind, k.Param)
}

// Label is the name hierarchy grouping is keyed on: the type parameter when
// one exists, otherwise the kind itself.
func (k LocationKind) Label() string {
	if k.Param == "" || k.Param == "()" {
		return k.Kind
	}
	return k.Param
}

// String renders the canonical form, re-applying one Tick layer per depth
// level so that nested ticks stay textually distinct.
func (k LocationKind) String() string {
	s := k.Base()
	for i := 0; i < k.TickDepth; i++ {
		s = "Tick<" + s + ">"
	}
	return s
}

// WithoutTicks returns the same location at depth zero.
func (k LocationKind) WithoutTicks() LocationKind {
	k.TickDepth = 0
	return k
}

func (k LocationKind) IsZero() bool {
	return k.Kind == ""
}

// collectionWrappers maps each known generic container type to the index of
// its location parameter. Keyed containers carry the key type first, which
// shifts the location one slot to the right.
var collectionWrappers = map[string]int{
	"Stream":         1,
	"Optional":       1,
	"Singleton":      1,
	"KeyedStream":    2,
	"KeyedSingleton": 2,
}

// ContainsCollectionWrapper reports whether the raw type text mentions one of
// the known dataflow container types. Substring match is intentional: the
// oracle often returns partially-resolved signature text.
func ContainsCollectionWrapper(typeText string) bool {
	for name := range collectionWrappers {
		if strings.Contains(typeText, name+"<") {
			return true
		}
	}
	return false
}
