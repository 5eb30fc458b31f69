package merge

// Merge3 computes a + b - base, the three-way merge rule of spec §4.2,
// generalized so that any of the three inputs may themselves already be
// conflicted (as happens when merging commits whose parents are
// themselves the result of earlier unresolved merges). Wrap a plain,
// uncontested value with Resolved before calling.
//
// Since -base = -(Σadds_base - Σremoves_base) = Σremoves_base - Σadds_base,
// the combined shape is:
//
//	adds    = a.adds    ++ b.adds    ++ base.removes
//	removes = a.removes ++ b.removes ++ base.adds
//
// which preserves the len(adds) == len(removes)+1 invariant, then the
// result is simplified by cancelling equal adds/removes.
func Merge3[T any](a, b, base Merge[T], eq func(x, y T) bool) Merge[T] {
	adds := make([]T, 0, len(a.adds)+len(b.adds)+len(base.removes))
	adds = append(adds, a.adds...)
	adds = append(adds, b.adds...)
	adds = append(adds, base.removes...)

	removes := make([]T, 0, len(a.removes)+len(b.removes)+len(base.adds))
	removes = append(removes, a.removes...)
	removes = append(removes, b.removes...)
	removes = append(removes, base.adds...)

	return Simplify(Merge[T]{adds: adds, removes: removes}, eq)
}

// Merge3Values is the common case of Merge3 where all three sides are
// already-resolved plain values: merge(a, b, base) over uncontested tree
// entries, RefTarget slots, and the like.
func Merge3Values[T any](a, b, base T, eq func(x, y T) bool) Merge[T] {
	return Merge3(Resolved(a), Resolved(b), Resolved(base), eq)
}
