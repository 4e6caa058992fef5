package operators

import "testing"

func TestClassify(t *testing.T) {
	c := NewClassifier(Config{})

	cases := map[string]Category{
		"source_iter":        CategorySource,
		"source_stream":      CategorySource,
		"source_interval":    CategorySource,
		"source_custom_feed": CategorySource, // prefix match
		"for_each":           CategorySink,
		"dest_sink":          CategorySink,
		"join":               CategoryJoin,
		"cross_product":      CategoryJoin,
		"difference":         CategoryJoin,
		"anti_join":          CategoryJoin,
		"send_bincode":       CategoryNetwork,
		"round_robin_bincode": CategoryNetwork,
		"demux_bytes":        CategoryNetwork, // serialization marker
		"decouple_cluster":   CategoryNetwork,
		"fold":               CategoryAggregation,
		"reduce_commutative": CategoryAggregation,
		"count":              CategoryAggregation,
		"tee":                CategoryTee,
		"persist":            CategoryTee,
		"map":                CategoryTransform,
		"filter":             CategoryTransform,
		"some_unknown_op":    CategoryTransform,
	}
	for name, want := range cases {
		if got := c.Classify(name); got != want {
			t.Fatalf("%s: want %s, got %s", name, want, got)
		}
	}
}

func TestClassify_ExtraConfig(t *testing.T) {
	c := NewClassifier(Config{
		ExtraSinks:      []string{"emit_metrics"},
		ExtraNetworking: []string{"gossip"},
	})

	if got := c.Classify("emit_metrics"); got != CategorySink {
		t.Fatalf("want sink, got %s", got)
	}
	if !c.IsSink("emit_metrics") {
		t.Fatal("configured sink not recognized")
	}
	if !c.IsNetworking("gossip") {
		t.Fatal("configured networking op not recognized")
	}
	if !c.IsValidDataflowOperator("gossip", nil) {
		t.Fatal("configured op should count as known")
	}
}

func TestIsValidDataflowOperator_NilReturnType(t *testing.T) {
	c := NewClassifier(Config{})

	// Closed-world default: known names only.
	if !c.IsValidDataflowOperator("map", nil) {
		t.Fatal("map is a known operator")
	}
	if !c.IsValidDataflowOperator("send_bincode", nil) {
		t.Fatal("send_bincode is a known networking operator")
	}
	if c.IsValidDataflowOperator("bespoke_op", nil) {
		t.Fatal("unknown name must be rejected without a return type")
	}
}

func TestIsValidDataflowOperator_ReturnTypes(t *testing.T) {
	c := NewClassifier(Config{})

	valid := map[string]string{
		"map":      "Stream<i32, Process<Leader>, Unbounded>",
		"fold":     "Singleton<i32, Tick<Cluster<'a, Worker>>, Bounded>",
		"into_keyed": "KeyedStream<String, i32, Cluster<'a, Worker>, Unbounded>",
		"for_each": "()",
		"drain":    "impl Future<Output = ()>",
		"complete": "Result<(), SinkError>",
	}
	for name, rt := range valid {
		rt := rt
		if !c.IsValidDataflowOperator(name, &rt) {
			t.Fatalf("%s with %q should be valid", name, rt)
		}
	}

	// A bare location kind is a location-constructor call, not an operator,
	// no matter how dataflow-sounding the name is.
	for name, rt := range map[string]string{
		"cluster":  "Cluster<Worker>",
		"process":  "Process<'a, Leader>",
		"external": "External<()>",
		"helper":   "Vec<u8>",
	} {
		rt := rt
		if c.IsValidDataflowOperator(name, &rt) {
			t.Fatalf("%s with %q should be rejected", name, rt)
		}
	}

	// Networking calls pass even with unresolved signature text.
	partial := "fn send_bincode<L2>(self, other: &L2"
	if !c.IsValidDataflowOperator("send_bincode", &partial) {
		t.Fatal("networking op with partial signature should be valid")
	}
}
