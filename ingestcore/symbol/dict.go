// Package symbol implements the per-worker symbol (categorical string)
// dictionary and the cross-worker reconciliation merge spec.md §4.6
// describes: each worker interns the strings of a symbol column into its
// own dictionary during the load phase, and the SymbolMerger later folds
// every worker's dictionary into the final table's, producing a remap
// array used to rewrite staged key columns in place.
package symbol

import (
	"math"

	"github.com/cespare/xxhash"
)

// Dict is a per-worker, append-only string-to-key dictionary. Keys are
// assigned in insertion order starting at 0, matching spec.md §4.6's
// "within a worker, in dictionary-insertion order".
type Dict struct {
	keys   map[string]int32
	values []string
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{keys: make(map[string]int32)}
}

// NewDictSized returns an empty dictionary whose backing map and slice are
// preallocated for roughly sizeHint distinct values, avoiding rehashing
// during the load phase when the schema detector's cardinality estimate
// (EstimateCardinality) already gives a good guess. sizeHint <= 0 behaves
// like NewDict.
func NewDictSized(sizeHint int) *Dict {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Dict{
		keys:   make(map[string]int32, sizeHint),
		values: make([]string, 0, sizeHint),
	}
}

// cardinalityBuckets is the number of hash buckets EstimateCardinality
// spreads samples across; a coarse linear-counting estimator, good enough
// to pick a map pre-size hint rather than an exact distinct count.
const cardinalityBuckets = 256

// EstimateCardinality hashes each sample with xxhash into one of
// cardinalityBuckets buckets and extrapolates the number of distinct
// values from how many buckets were touched (linear counting). Used by
// schemadetect to pre-size a symbol column's per-worker dictionaries
// before any row has actually been interned.
func EstimateCardinality(samples []string) int {
	if len(samples) == 0 {
		return 0
	}
	var touched [cardinalityBuckets]bool
	hit := 0
	for _, s := range samples {
		b := xxhash.Sum64String(s) % cardinalityBuckets
		if !touched[b] {
			touched[b] = true
			hit++
		}
	}
	if hit >= cardinalityBuckets {
		return len(samples)
	}
	// Linear counting: n ≈ -m * ln(empty/m).
	empty := cardinalityBuckets - hit
	estimate := float64(cardinalityBuckets) * math.Log(float64(cardinalityBuckets)/float64(empty))
	if int(estimate) > len(samples) {
		return len(samples)
	}
	return int(estimate)
}

// Intern returns s's key, assigning a new one if s hasn't been seen.
func (d *Dict) Intern(s string) int32 {
	if k, ok := d.keys[s]; ok {
		return k
	}
	k := int32(len(d.values))
	d.keys[s] = k
	d.values = append(d.values, s)
	return k
}

// Len returns the number of distinct strings interned.
func (d *Dict) Len() int {
	return len(d.values)
}

// Value returns the string for key, which must be < Len().
func (d *Dict) Value(key int32) string {
	return d.values[key]
}

// Values returns the dictionary's strings in key order (0, 1, 2, ...),
// the order SymbolMerger iterates them in.
func (d *Dict) Values() []string {
	return d.values
}
