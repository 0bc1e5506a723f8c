package coordinator

import (
	"github.com/featurebasedb/bulkload/ingestcore/config"
	"github.com/featurebasedb/bulkload/ingestcore/errcode"
)

// TableMetadata is the minimal shape of an existing target table's
// metadata that pre-flight validation needs (SPEC_FULL.md §12,
// "Table-structure validation before phase 1"). A nil *TableMetadata means
// the target table does not exist yet, in which case every check is
// trivially satisfied.
type TableMetadata struct {
	ColumnCount int
	PartitionBy config.PartitionBy
}

// WithExisting attaches the target table's current metadata so Run's
// pre-flight Validate call can check column-count and partition-by
// compatibility before dispatching any phase-1 task. Passing nil (the
// default) means the table does not exist yet.
func (c *Coordinator) WithExisting(existing *TableMetadata) *Coordinator {
	c.existing = existing
	return c
}

// Validate performs the table-structure checks SPEC_FULL.md §12 carries
// over from the original's prepareTable/validate: column-count mismatch
// and partitionBy mismatch against an existing non-empty target are raised
// as Configuration errors here, before any phase-1 task runs. detectedCols
// is the column count schemadetect.Detect produced for this run.
func (c *Coordinator) Validate(detectedCols int) error {
	if c.existing == nil {
		return nil
	}
	if c.existing.ColumnCount != detectedCols {
		return errcode.Newf(errcode.Configuration,
			"column count %d does not match existing table %q's column count %d",
			detectedCols, c.cfg.TableName, c.existing.ColumnCount)
	}
	if c.existing.PartitionBy != c.cfg.PartitionBy {
		return errcode.Newf(errcode.Configuration,
			"partitionBy %q does not match existing table %q's partitionBy %q",
			c.cfg.PartitionBy, c.cfg.TableName, c.existing.PartitionBy)
	}
	return nil
}
