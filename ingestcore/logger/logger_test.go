package logger_test

import (
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/logger"
	"github.com/stretchr/testify/require"
)

func TestBufferLogger(t *testing.T) {
	l := logger.NewBufferLogger()
	l.Infof("loaded %d rows", 12)
	require.Contains(t, l.String(), "loaded 12 rows")
}

func TestNopLogger(t *testing.T) {
	require.NotPanics(t, func() {
		logger.NopLogger.Errorf("should not appear anywhere: %v", "x")
		_ = logger.NopLogger.WithPrefix("x")
	})
}
