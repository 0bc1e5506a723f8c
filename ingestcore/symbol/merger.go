package symbol

// Merge interns every value of worker (in its insertion order) into
// final, returning the remap array — indexed by worker's old key,
// valued with final's new key — that spec.md §6 calls the "Symbol remap
// file format". Ordering across workers is the caller's responsibility
// (spec.md §4.6: "dictionaries are merged in worker index order").
func Merge(final *Dict, worker *Dict) []int32 {
	remap := make([]int32, worker.Len())
	for oldKey, v := range worker.Values() {
		remap[oldKey] = final.Intern(v)
	}
	return remap
}
