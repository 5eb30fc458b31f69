package merge

import "testing"

func eqInt(a, b int) bool { return a == b }

func TestResolveTrivial(t *testing.T) {
	m := Resolved(5)
	v, ok := Resolve(m, eqInt)
	if !ok || v != 5 {
		t.Fatalf("expected resolved 5, got %v %v", v, ok)
	}
}

func TestMerge3NoChange(t *testing.T) {
	// a == b == base: no conflict, result resolves to base.
	m := Merge3Values(1, 1, 1, eqInt)
	v, ok := Resolve(m, eqInt)
	if !ok || v != 1 {
		t.Fatalf("expected resolved 1, got %v %v", v, ok)
	}
}

func TestMerge3OneSidedChange(t *testing.T) {
	// a changed, b == base: result is a's value.
	m := Merge3Values(2, 1, 1, eqInt)
	v, ok := Resolve(m, eqInt)
	if !ok || v != 2 {
		t.Fatalf("expected resolved 2, got %v %v", v, ok)
	}
}

func TestMerge3BothChangedDifferently(t *testing.T) {
	// a and b both changed the same base value to different things:
	// unresolved conflict with both adds present.
	m := Merge3Values(2, 3, 1, eqInt)
	if m.IsResolved() {
		t.Fatalf("expected conflict, got resolved")
	}
	if len(m.Adds()) != 2 || len(m.Removes()) != 1 {
		t.Fatalf("unexpected shape: adds=%v removes=%v", m.Adds(), m.Removes())
	}
}

func TestSimplifyCancelsPairs(t *testing.T) {
	m := New([]int{1, 2, 3}, []int{2, 1})
	s := Simplify(m, eqInt)
	v, ok := Resolve(s, eqInt)
	if !ok || v != 3 {
		t.Fatalf("expected resolved 3 after cancellation, got %v %v", v, ok)
	}
}
