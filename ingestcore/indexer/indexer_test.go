package indexer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/boundary"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/indexentry"
	"github.com/featurebasedb/bulkload/ingestcore/indexer"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/partitionby"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunIndexesEveryRowIntoItsPartitionShard(t *testing.T) {
	dir := t.TempDir()
	content := "0,a\n90000,b\n50000,c\n"
	src := writeFile(t, dir, "source.csv", content)
	workDir := filepath.Join(dir, "work")

	facade := fswrap.OSFacade{}
	res, err := indexer.Run(indexer.Params{
		Facade:        facade,
		SourcePath:    src,
		Chunk:         boundary.IndexingChunk{Lo: 0, Hi: int64(len(content)), StartingLine: 0, ChunkID: 0},
		WorkerID:      0,
		WorkDir:       workDir,
		Delimiter:     ',',
		TimestampCol:  0,
		TimestampAdpt: lexer.NewTimestampAdapter(""),
		PartitionUnit: partitionby.Day,
		MmapWindow:    4096,
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.RecordCount)
	require.EqualValues(t, 0, res.ErrorCount)
	require.ElementsMatch(t, []string{"1970-01-01", "1970-01-02"}, res.Partitions)

	// Raw seconds 0 and 50000 both fall within day one (0h and ~13.9h);
	// 90000 seconds is 25 hours in, past midnight into day two.
	shardPath := filepath.Join(workDir, "1970-01-01", "0_0")
	f, err := facade.OpenRO(shardPath)
	require.NoError(t, err)
	defer f.Close()
	length, err := f.Length()
	require.NoError(t, err)
	data, err := f.Mmap(0, int(length))
	require.NoError(t, err)
	defer f.Munmap(data)
	view := indexentry.View(data)
	require.Equal(t, 2, view.Len())
}

func TestRunMeasuresLongestRecordWhenItIsLastInTheChunk(t *testing.T) {
	dir := t.TempDir()
	// The first record is short; the last (and longest) record terminates
	// the chunk with a newline, so it is reported via the same
	// ParseIndexed call as every other record and never gets a subsequent
	// record to diff its length against.
	lastRecord := "50000,a-rather-long-value-for-this-row\n"
	content := "0,a\n" + lastRecord
	src := writeFile(t, dir, "source.csv", content)
	workDir := filepath.Join(dir, "work")

	res, err := indexer.Run(indexer.Params{
		Facade:        fswrap.OSFacade{},
		SourcePath:    src,
		Chunk:         boundary.IndexingChunk{Lo: 0, Hi: int64(len(content)), StartingLine: 0, ChunkID: 0},
		WorkerID:      0,
		WorkDir:       workDir,
		Delimiter:     ',',
		TimestampCol:  0,
		TimestampAdpt: lexer.NewTimestampAdapter(""),
		PartitionUnit: partitionby.Day,
		MmapWindow:    4096,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.RecordCount)
	require.EqualValues(t, len(lastRecord), res.MaxLineLength)
}

func TestRunMeasuresLongestRecordWhenFileHasNoTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	// The final line has no terminating newline, so it is flushed through
	// ParseLast rather than ParseIndexed; it is also the longest record in
	// the chunk and must still be measured correctly.
	lastRecord := "50000,a-rather-long-value-for-this-row"
	content := "0,a\n" + lastRecord
	src := writeFile(t, dir, "source.csv", content)
	workDir := filepath.Join(dir, "work")

	res, err := indexer.Run(indexer.Params{
		Facade:        fswrap.OSFacade{},
		SourcePath:    src,
		Chunk:         boundary.IndexingChunk{Lo: 0, Hi: int64(len(content)), StartingLine: 0, ChunkID: 0},
		WorkerID:      0,
		WorkDir:       workDir,
		Delimiter:     ',',
		TimestampCol:  0,
		TimestampAdpt: lexer.NewTimestampAdapter(""),
		PartitionUnit: partitionby.Day,
		MmapWindow:    4096,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.RecordCount)
	require.EqualValues(t, len(lastRecord), res.MaxLineLength)
}

func TestRunSkipsRecordsWithBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	content := "notanumber,a\n1000000,b\n"
	src := writeFile(t, dir, "source.csv", content)
	workDir := filepath.Join(dir, "work")

	res, err := indexer.Run(indexer.Params{
		Facade:        fswrap.OSFacade{},
		SourcePath:    src,
		Chunk:         boundary.IndexingChunk{Lo: 0, Hi: int64(len(content)), StartingLine: 0, ChunkID: 0},
		WorkerID:      0,
		WorkDir:       workDir,
		Delimiter:     ',',
		TimestampCol:  0,
		TimestampAdpt: lexer.NewTimestampAdapter(""),
		PartitionUnit: partitionby.Day,
		MmapWindow:    4096,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.ErrorCount)
	require.EqualValues(t, 1, res.RecordCount-res.ErrorCount)
}
