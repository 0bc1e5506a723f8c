package coordinator_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/config"
	"github.com/featurebasedb/bulkload/ingestcore/coordinator"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/logger"
	"github.com/stretchr/testify/require"
)

type recordingTableWriter struct {
	mu       sync.Mutex
	attached []string
}

func (r *recordingTableWriter) AttachPartition(tableName, partitionName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = append(r.attached, partitionName)
	return nil
}

func baseConfig(dir string) config.Config {
	cfg := config.Defaults()
	cfg.TableName = "metrics"
	cfg.InputFileName = "source.csv"
	cfg.PartitionBy = config.PartitionByDay
	cfg.TimestampColumn = "ts"
	cfg.InputRoot = dir
	cfg.WorkRoot = filepath.Join(dir, "work")
	cfg.DBRoot = filepath.Join(dir, "db")
	cfg.MinChunkSize = 64
	cfg.MmapWindow = 4096
	return cfg
}

func writeSource(t *testing.T, dir string) {
	t.Helper()
	content := "ts,host,val\n" +
		"0,web-1,1\n" +
		"50000,web-2,2\n" +
		"90000,web-1,3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source.csv"), []byte(content), 0o644))
}

func TestRunEndToEndSingleWorker(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)

	cfg := baseConfig(dir)
	cfg.WorkerCount = 1

	tw := &recordingTableWriter{}
	c := coordinator.New(cfg, fswrap.OSFacade{}, logger.NopLogger, tw)
	report, err := c.Run()
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"1970-01-01", "1970-01-02"}, report.PartitionNames)
	require.EqualValues(t, 3, report.RowsWritten)
	require.EqualValues(t, 0, report.RowsSkipped)
	require.EqualValues(t, 0, report.IndexErrors)
	require.Empty(t, report.Attach.Failed)

	tw.mu.Lock()
	defer tw.mu.Unlock()
	require.ElementsMatch(t, []string{"1970-01-01", "1970-01-02"}, tw.attached)

	for _, p := range []string{"1970-01-01", "1970-01-02"} {
		require.True(t, fswrap.OSFacade{}.Exists(filepath.Join(cfg.DBRoot, "metrics", p)))
	}

	// Work directory is created fresh per run and removed on exit.
	entries, err := os.ReadDir(cfg.WorkRoot)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunEndToEndMultipleWorkers(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)

	cfg := baseConfig(dir)
	cfg.WorkerCount = 3

	tw := &recordingTableWriter{}
	c := coordinator.New(cfg, fswrap.OSFacade{}, logger.NopLogger, tw)
	report, err := c.Run()
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"1970-01-01", "1970-01-02"}, report.PartitionNames)
	require.EqualValues(t, 3, report.RowsWritten)
	require.EqualValues(t, 0, report.RowsSkipped)

	tw.mu.Lock()
	defer tw.mu.Unlock()
	require.ElementsMatch(t, []string{"1970-01-01", "1970-01-02"}, tw.attached)
}

func TestRunRejectsColumnCountMismatchAgainstExistingTable(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)

	cfg := baseConfig(dir)
	cfg.WorkerCount = 1

	c := coordinator.New(cfg, fswrap.OSFacade{}, logger.NopLogger, &recordingTableWriter{})
	c.WithExisting(&coordinator.TableMetadata{ColumnCount: 2, PartitionBy: config.PartitionByDay})

	_, err := c.Run()
	require.Error(t, err)
}

func TestRunRejectsEmptyInputFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source.csv"), nil, 0o644))

	cfg := baseConfig(dir)
	cfg.WorkerCount = 1

	c := coordinator.New(cfg, fswrap.OSFacade{}, logger.NopLogger, &recordingTableWriter{})
	_, err := c.Run()
	require.Error(t, err)
}
