package table_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/table"
	"github.com/stretchr/testify/require"
)

func testSchema() table.Schema {
	return table.Schema{Columns: []table.Column{
		{Name: "ts", Type: lexer.ColumnInt64},
		{Name: "name", Type: lexer.ColumnString},
		{Name: "host", Type: lexer.ColumnSymbol},
	}}
}

func TestWriterAppendAndCommitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	facade := fswrap.OSFacade{}
	schema := testSchema()

	w, err := table.NewWriter(facade, dir, "metrics", 0, schema, true)
	require.NoError(t, err)
	require.Equal(t, 0, w.WorkerID())
	require.Equal(t, schema, w.Schema())

	r := w.NewRow(1000, "2020-01-01")
	r.PutInt64(0, 1000)
	r.PutString(1, "cpu")
	r.PutSymbol(2, []byte("host-a"))
	require.NoError(t, r.Append())

	r2 := w.NewRow(2000, "2020-01-01")
	r2.PutInt64(0, 2000)
	r2.PutNull(1)
	r2.PutSymbol(2, []byte("host-b"))
	require.NoError(t, r2.Append())

	require.NoError(t, w.Commit(true))

	require.Equal(t, []string{"2020-01-01"}, w.Partitions())
	meta := w.GetMetadata()
	require.EqualValues(t, 2, meta.RowCounts["2020-01-01"])

	partDir := w.PartitionDir("2020-01-01")
	require.Equal(t, filepath.Join(dir, "metrics", "metrics__0", "2020-01-01"), partDir)

	// Fixed column: 9 bytes/row, present-flag + little-endian int64.
	fixedPath := filepath.Join(partDir, "ts.fix")
	fr, err := facade.OpenRO(fixedPath)
	require.NoError(t, err)
	defer fr.Close()
	length, err := fr.Length()
	require.NoError(t, err)
	require.EqualValues(t, 18, length)
	buf := make([]byte, 18)
	_, err = fr.Pread(buf, 0)
	require.NoError(t, err)
	require.Equal(t, byte(1), buf[0])
	require.EqualValues(t, 1000, int64(binary.LittleEndian.Uint64(buf[1:9])))
	require.EqualValues(t, 2000, int64(binary.LittleEndian.Uint64(buf[10:18])))

	// Symbol column: two distinct interned keys, 0 and 1.
	keyPath := w.KeyFilePath("2020-01-01", 2)
	require.Equal(t, filepath.Join(partDir, "host.key"), keyPath)
	kr, err := facade.OpenRO(keyPath)
	require.NoError(t, err)
	defer kr.Close()
	kbuf := make([]byte, 8)
	_, err = kr.Pread(kbuf, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, binary.LittleEndian.Uint32(kbuf[0:4]))
	require.EqualValues(t, 1, binary.LittleEndian.Uint32(kbuf[4:8]))

	dict := w.GetSymbolMapWriter(2)
	require.Equal(t, 2, dict.Len())
	require.Equal(t, "host-a", dict.Value(0))
	require.Equal(t, "host-b", dict.Value(1))
}

func TestRowCancelDiscardsBufferedValues(t *testing.T) {
	dir := t.TempDir()
	facade := fswrap.OSFacade{}
	w, err := table.NewWriter(facade, dir, "metrics", 0, testSchema(), false)
	require.NoError(t, err)

	r := w.NewRow(1000, "2020-01-01")
	r.PutInt64(0, 1000)
	r.Cancel()
	require.True(t, r.Canceled())
	require.NoError(t, r.Append()) // no-op once canceled

	require.Empty(t, w.Partitions())
}

func TestPartitionDirAndKeyFilePathUnknownReturnEmpty(t *testing.T) {
	dir := t.TempDir()
	facade := fswrap.OSFacade{}
	w, err := table.NewWriter(facade, dir, "metrics", 0, testSchema(), false)
	require.NoError(t, err)

	require.Equal(t, "", w.PartitionDir("nope"))
	require.Equal(t, "", w.KeyFilePath("nope", 2))
}
