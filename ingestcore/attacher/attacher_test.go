package attacher_test

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/attacher"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/logger"
	"github.com/featurebasedb/bulkload/ingestcore/table"
	"github.com/stretchr/testify/require"
)

type fakeTableWriter struct {
	mu       sync.Mutex
	attached []string
}

func (f *fakeTableWriter) AttachPartition(tableName, partitionName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, partitionName)
	return nil
}

type erroringTableWriter struct {
	failOn string
}

var errAttachFailed = errors.New("attach rejected by table writer")

func (e *erroringTableWriter) AttachPartition(tableName, partitionName string) error {
	if partitionName == e.failOn {
		return errAttachFailed
	}
	return nil
}

func schema() table.Schema {
	return table.Schema{Columns: []table.Column{{Name: "v", Type: lexer.ColumnInt64}}}
}

func writerWithPartitions(t *testing.T, dir string, workerID int, partitions ...string) *table.Writer {
	t.Helper()
	w, err := table.NewWriter(fswrap.OSFacade{}, dir, "metrics", workerID, schema(), false)
	require.NoError(t, err)
	for _, p := range partitions {
		r := w.NewRow(0, p)
		r.PutInt64(0, 1)
		require.NoError(t, r.Append())
	}
	require.NoError(t, w.Commit(false))
	return w
}

func TestAttachMovesPartitionsAndCallsTableWriter(t *testing.T) {
	dir := t.TempDir()
	facade := fswrap.OSFacade{}

	w0 := writerWithPartitions(t, dir, 0, "2020-01-01", "2020-01-02")
	w1 := writerWithPartitions(t, dir, 1, "2020-01-03")
	staging0101 := w0.PartitionDir("2020-01-01")

	tw := &fakeTableWriter{}
	report := attacher.Attach(facade, []*table.Writer{w0, w1}, "metrics", filepath.Join(dir, "db"), tw, 2, logger.NopLogger)

	require.Empty(t, report.Failed)
	require.ElementsMatch(t, []string{"2020-01-01", "2020-01-02", "2020-01-03"}, report.Attached)

	tw.mu.Lock()
	defer tw.mu.Unlock()
	require.ElementsMatch(t, []string{"2020-01-01", "2020-01-02", "2020-01-03"}, tw.attached)

	for _, p := range []string{"2020-01-01", "2020-01-02", "2020-01-03"} {
		require.True(t, facade.Exists(filepath.Join(dir, "db", "metrics", p)))
	}
	// Staging directory is gone now that Rename moved it into the final table.
	require.False(t, facade.Exists(staging0101))
}

func TestAttachReportsPerPartitionFailureWithoutAbortingTheRest(t *testing.T) {
	dir := t.TempDir()
	facade := fswrap.OSFacade{}

	w0 := writerWithPartitions(t, dir, 0, "2020-01-01", "2020-01-02")

	tw := &erroringTableWriter{failOn: "2020-01-02"}
	report := attacher.Attach(facade, []*table.Writer{w0}, "metrics", filepath.Join(dir, "db"), tw, 2, logger.NopLogger)

	require.ElementsMatch(t, []string{"2020-01-01"}, report.Attached)
	require.Len(t, report.Failed, 1)
	require.Contains(t, report.Failed, "2020-01-02")
}
