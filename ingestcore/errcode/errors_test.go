package errcode_test

import (
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/errcode"
	"github.com/stretchr/testify/require"
)

func TestIsAndCodeOf(t *testing.T) {
	err := errcode.New(errcode.Configuration, "partitionBy must not be NONE")
	require.True(t, errcode.Is(err, errcode.Configuration))
	require.False(t, errcode.Is(err, errcode.IO))
	require.Equal(t, errcode.Configuration, errcode.CodeOf(err))
}

func TestWrapPreservesCode(t *testing.T) {
	base := errcode.New(errcode.IO, "open failed")
	wrapped := errcode.Wrap(base, errcode.IO, "reading chunk boundary")
	require.True(t, errcode.Is(wrapped, errcode.IO))
	require.Contains(t, wrapped.Error(), "open failed")
}

func TestCodeOfUncoded(t *testing.T) {
	require.Equal(t, errcode.Uncoded, errcode.CodeOf(nil))
}
