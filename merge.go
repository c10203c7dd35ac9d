// FILE: lixenwraith/layered/merge.go
package layered

// Merge combines base and overlay into a new tree. Two tables merge key by
// key, recursing where both sides hold a value; every other combination,
// arrays included, is replaced wholesale by overlay along with its origin.
// Neither argument is modified and untouched subtrees are shared.
//
// Merge is not commutative: overlay wins every conflict. Folding it over
// sources in registration order is what gives later sources precedence.
func Merge(base, overlay Value) Value {
	if base.kind != KindTable || overlay.kind != KindTable {
		return overlay
	}
	// An empty contribution, such as a skipped optional source, leaves base
	// and its provenance as they were.
	if overlay.tbl.Len() == 0 {
		return base
	}

	out := base.tbl.clone()
	for _, k := range overlay.tbl.keys {
		ov := overlay.tbl.entries[k]
		if bv, ok := out.entries[k]; ok {
			out.Set(k, Merge(bv, ov))
			continue
		}
		out.Set(k, ov)
	}
	return Value{kind: KindTable, origin: overlay.origin, tbl: out}
}

// MergeAll folds Merge left to right, starting from an empty table.
func MergeAll(values ...Value) Value {
	acc := EmptyTable()
	for _, v := range values {
		acc = Merge(acc, v)
	}
	return acc
}
