package analyzer

import (
	"testing"

	"flowlens/internal/engine/typestr"
)

func TestResolveGenericParameters_ParamBindings(t *testing.T) {
	sig := "fn send_bincode<L2, CoreType>(self, other: &L2) -> Stream<CoreType, L2, Unbounded>"
	meta := "where\nL2 = Cluster<'a, Worker>,\nCoreType = i32"

	got := resolveGenericParameters(sig, meta)
	want := "fn send_bincode<Cluster<'a, Worker>, i32>(self, other: &Cluster<'a, Worker>) -> Stream<i32, Cluster<'a, Worker>, Unbounded>"
	if got != want {
		t.Fatalf("want %q\ngot  %q", want, got)
	}
}

func TestResolveGenericParameters_SelfFromImpl(t *testing.T) {
	sig := "fn tick(&self) -> Tick<Self>"
	meta := "impl<'a, T> Location for Process<'a, T>"

	got := resolveGenericParameters(sig, meta)
	if got != "fn tick(&self) -> Tick<Process<'a, T>>" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveGenericParameters_WholeIdentOnly(t *testing.T) {
	// Substituting B must not touch Bounded.
	sig := "fn batch(self) -> Stream<T, L, B, Bounded>"
	meta := "B = Unbounded"

	got := resolveGenericParameters(sig, meta)
	if got != "fn batch(self) -> Stream<T, L, Unbounded, Bounded>" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveGenericParameters_NoMetadata(t *testing.T) {
	sig := "fn map(self) -> Stream<O, L, B>"
	if got := resolveGenericParameters(sig, ""); got != sig {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeOracleText(t *testing.T) {
	// Plain type text passes through.
	if got := normalizeOracleText("Stream<i32, Process<'a, Leader>, Unbounded>"); got != "Stream<i32, Process<'a, Leader>, Unbounded>" {
		t.Fatalf("got %q", got)
	}

	// Signature hover text reduces to the resolved return type.
	raw := "fn map<F, O>(self, f: F) -> Stream<O, L, B>\nO = i32,\nL = Process<'a, Leader>,\nB = Unbounded"
	got := normalizeOracleText(raw)
	if got != "Stream<i32, Process<'a, Leader>, Unbounded>" {
		t.Fatalf("got %q", got)
	}
	kind, ok := typestr.ParseLocationType(got)
	if !ok || kind.String() != "Process<Leader>" {
		t.Fatalf("normalized text did not resolve: %v %v", kind, ok)
	}

	// Unit returns keep their shape for the validity check.
	if got := normalizeOracleText("fn for_each<F>(self, f: F) -> ()"); got != "()" {
		t.Fatalf("got %q", got)
	}
}
