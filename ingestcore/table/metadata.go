package table

// Metadata is what GetMetadata() returns: the schema plus, per partition
// this writer has touched, the row count written so far — enough for the
// coordinator to validate "column count mismatch with existing table"
// (spec.md §7.1) and to report load progress.
type Metadata struct {
	Schema     Schema
	RowCounts  map[string]int64
	WorkerID   int
}
