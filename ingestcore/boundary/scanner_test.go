package boundary_test

import (
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/boundary"
	"github.com/stretchr/testify/require"
)

func TestScanNoQuotes(t *testing.T) {
	data := []byte("abc\ndef\nghi")
	stat := boundary.Scan(data, 0)
	require.EqualValues(t, 0, stat.Quotes)
	require.EqualValues(t, 2, stat.NewlinesEven)
	require.EqualValues(t, 4, stat.FirstNewlineEven)
	// odd hypothesis starts inside a (nonexistent) quote, so no unquoted
	// newlines are ever seen.
	require.EqualValues(t, 0, stat.NewlinesOdd)
	require.EqualValues(t, -1, stat.FirstNewlineOdd)
}

func TestScanQuotedNewlineNotCounted(t *testing.T) {
	data := []byte("\"a\nb\",c\nd,e\n")
	stat := boundary.Scan(data, 0)
	require.EqualValues(t, 2, stat.Quotes)
	// even hypothesis: starts outside quotes, enters quote at index 0,
	// exits at index 4; the newline inside the quote (index 2) is not
	// counted, but the two newlines outside it (after "c" and after "e")
	// are.
	require.EqualValues(t, 2, stat.NewlinesEven)
}

func TestScanAbsoluteOffsets(t *testing.T) {
	data := []byte("x\ny\n")
	stat := boundary.Scan(data, 1000)
	require.EqualValues(t, 1002, stat.FirstNewlineEven)
}
