package indexentry_test

import (
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/indexentry"
	"github.com/stretchr/testify/require"
)

func buildRun(entries ...indexentry.Entry) indexentry.View {
	buf := make([]byte, len(entries)*indexentry.Size)
	for i, e := range entries {
		e.Put(buf[i*indexentry.Size : i*indexentry.Size+indexentry.Size])
	}
	return indexentry.View(buf)
}

func TestMergeAscendingAcrossRuns(t *testing.T) {
	run0 := buildRun(
		indexentry.Entry{Timestamp: 10, Offset: 0},
		indexentry.Entry{Timestamp: 30, Offset: 16},
	)
	run1 := buildRun(
		indexentry.Entry{Timestamp: 20, Offset: 100},
		indexentry.Entry{Timestamp: 40, Offset: 116},
	)

	var merged []indexentry.Entry
	indexentry.Merge([]indexentry.View{run0, run1}, func(e indexentry.Entry) {
		merged = append(merged, e)
	})

	require.Equal(t, []indexentry.Entry{
		{Timestamp: 10, Offset: 0},
		{Timestamp: 20, Offset: 100},
		{Timestamp: 30, Offset: 16},
		{Timestamp: 40, Offset: 116},
	}, merged)
}

func TestMergeTimestampTieBreaksByOffsetNotRunOrder(t *testing.T) {
	// run0 (presented first) holds the *larger* offset, run1 (presented
	// second) the smaller one, so a tie-break that looked at run
	// presentation order instead of Offset would get this backwards.
	run0 := buildRun(indexentry.Entry{Timestamp: 5, Offset: 200})
	run1 := buildRun(indexentry.Entry{Timestamp: 5, Offset: 100})

	var merged []indexentry.Entry
	indexentry.Merge([]indexentry.View{run0, run1}, func(e indexentry.Entry) {
		merged = append(merged, e)
	})

	require.Equal(t, []indexentry.Entry{
		{Timestamp: 5, Offset: 100},
		{Timestamp: 5, Offset: 200},
	}, merged)
}

func TestMergeToBufferSizedExactly(t *testing.T) {
	run0 := buildRun(indexentry.Entry{Timestamp: 1, Offset: 0})
	run1 := buildRun(indexentry.Entry{Timestamp: 2, Offset: 16}, indexentry.Entry{Timestamp: 3, Offset: 32})

	out := make([]byte, (run0.Len()+run1.Len())*indexentry.Size)
	indexentry.MergeToBuffer([]indexentry.View{run0, run1}, out)

	v := indexentry.View(out)
	require.Equal(t, 3, v.Len())
	require.Equal(t, int64(1), v.At(0).Timestamp)
	require.Equal(t, int64(2), v.At(1).Timestamp)
	require.Equal(t, int64(3), v.At(2).Timestamp)
}

func TestMergeEmptyRuns(t *testing.T) {
	var merged []indexentry.Entry
	indexentry.Merge(nil, func(e indexentry.Entry) { merged = append(merged, e) })
	require.Empty(t, merged)
}
