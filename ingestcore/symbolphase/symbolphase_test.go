package symbolphase_test

import (
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/symbolphase"
	"github.com/featurebasedb/bulkload/ingestcore/table"
	"github.com/stretchr/testify/require"
)

func schema() table.Schema {
	return table.Schema{Columns: []table.Column{
		{Name: "ts", Type: lexer.ColumnInt64},
		{Name: "host", Type: lexer.ColumnSymbol},
	}}
}

func TestReconcileMergesDictionariesAndRewritesKeys(t *testing.T) {
	dir := t.TempDir()
	facade := fswrap.OSFacade{}

	w0, err := table.NewWriter(facade, dir, "metrics", 0, schema(), false)
	require.NoError(t, err)
	r := w0.NewRow(1, "2020-01-01")
	r.PutInt64(0, 1)
	r.PutSymbol(1, []byte("host-a"))
	require.NoError(t, r.Append())
	r = w0.NewRow(2, "2020-01-01")
	r.PutInt64(0, 2)
	r.PutSymbol(1, []byte("host-b"))
	require.NoError(t, r.Append())

	w1, err := table.NewWriter(facade, dir, "metrics", 1, schema(), false)
	require.NoError(t, err)
	r = w1.NewRow(3, "2020-01-01")
	r.PutInt64(0, 3)
	r.PutSymbol(1, []byte("host-b")) // overlaps w0's host-b
	require.NoError(t, r.Append())
	r = w1.NewRow(4, "2020-01-01")
	r.PutInt64(0, 4)
	r.PutNull(1) // null symbol: must survive rewriting untouched
	require.NoError(t, r.Append())

	require.NoError(t, w0.Commit(false))
	require.NoError(t, w1.Commit(false))

	final, err := symbolphase.Reconcile(facade, schema(), []*table.Writer{w0, w1})
	require.NoError(t, err)

	dict := final[1]
	require.Equal(t, []string{"host-a", "host-b"}, dict.Values())

	// w0's key file: host-a -> 0, host-b -> 1 (unchanged, since those were
	// already final's keys in that order).
	keyPath0 := w0.KeyFilePath("2020-01-01", 1)
	buf0 := readAll(t, facade, keyPath0, 8)
	require.Equal(t, []byte{0, 0, 0, 0, 1, 0, 0, 0}, buf0)

	// w1's key file: host-b -> 1 (remapped from its own local key 0), then
	// the null sentinel must be left as 0xFFFFFFFF, not an out-of-range
	// remap lookup.
	keyPath1 := w1.KeyFilePath("2020-01-01", 1)
	buf1 := readAll(t, facade, keyPath1, 8)
	require.Equal(t, []byte{1, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}, buf1)
}

func readAll(t *testing.T, facade fswrap.Facade, path string, n int) []byte {
	t.Helper()
	f, err := facade.OpenRO(path)
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, n)
	_, err = f.Pread(buf, 0)
	require.NoError(t, err)
	return buf
}
