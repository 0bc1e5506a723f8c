package lexer

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ColumnType enumerates the staging-table column types a type adapter can
// target (spec.md §6 "Type adapters").
type ColumnType int

const (
	ColumnString ColumnType = iota
	ColumnInt64
	ColumnFloat64
	ColumnBool
	ColumnSymbol
	ColumnTimestamp
)

// RowWriter is the narrow slice of the table.Row surface a type adapter
// needs: putting a decoded value at a column index, or leaving it null.
type RowWriter interface {
	PutString(colIdx int, v string)
	PutInt64(colIdx int, v int64)
	PutFloat64(colIdx int, v float64)
	PutBool(colIdx int, v bool)
	PutSymbol(colIdx int, raw []byte)
	PutNull(colIdx int)
}

// Adapter converts one column's raw field bytes into a typed row value.
// A failure here is a TypeAdaptation-kind error (spec.md §7.4); the caller decides
// whether it is fatal based on the configured atomicity.
type Adapter interface {
	Write(row RowWriter, colIdx int, raw []byte) error
	Type() ColumnType
}

// TimestampAdapter additionally exposes the micros-since-epoch extraction
// the indexing phase needs to build index entries, independent of writing
// the row.
type TimestampAdapter interface {
	Adapter
	GetTimestamp(raw []byte) (int64, error)
}

type stringAdapter struct{}

func (stringAdapter) Write(row RowWriter, colIdx int, raw []byte) error {
	row.PutString(colIdx, string(raw))
	return nil
}
func (stringAdapter) Type() ColumnType { return ColumnString }

// StringAdapter returns an Adapter that copies the field verbatim.
func StringAdapter() Adapter { return stringAdapter{} }

type symbolAdapter struct{}

func (symbolAdapter) Write(row RowWriter, colIdx int, raw []byte) error {
	row.PutSymbol(colIdx, raw)
	return nil
}
func (symbolAdapter) Type() ColumnType { return ColumnSymbol }

// SymbolAdapter returns an Adapter that hands the raw bytes to the row's
// per-worker symbol dictionary (ingestcore/symbol), deferring the
// string-to-key lookup to the table layer.
func SymbolAdapter() Adapter { return symbolAdapter{} }

type int64Adapter struct{}

func (int64Adapter) Write(row RowWriter, colIdx int, raw []byte) error {
	if len(raw) == 0 {
		row.PutNull(colIdx)
		return nil
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return errors.Wrapf(err, "column %d: not an integer: %q", colIdx, raw)
	}
	row.PutInt64(colIdx, v)
	return nil
}
func (int64Adapter) Type() ColumnType { return ColumnInt64 }

// Int64Adapter returns an Adapter for signed 64-bit integer columns.
func Int64Adapter() Adapter { return int64Adapter{} }

type float64Adapter struct{}

func (float64Adapter) Write(row RowWriter, colIdx int, raw []byte) error {
	if len(raw) == 0 {
		row.PutNull(colIdx)
		return nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return errors.Wrapf(err, "column %d: not a float: %q", colIdx, raw)
	}
	row.PutFloat64(colIdx, v)
	return nil
}
func (float64Adapter) Type() ColumnType { return ColumnFloat64 }

// Float64Adapter returns an Adapter for double-precision float columns.
func Float64Adapter() Adapter { return float64Adapter{} }

type boolAdapter struct{}

func (boolAdapter) Write(row RowWriter, colIdx int, raw []byte) error {
	if len(raw) == 0 {
		row.PutNull(colIdx)
		return nil
	}
	v, err := strconv.ParseBool(string(raw))
	if err != nil {
		return errors.Wrapf(err, "column %d: not a bool: %q", colIdx, raw)
	}
	row.PutBool(colIdx, v)
	return nil
}
func (boolAdapter) Type() ColumnType { return ColumnBool }

// BoolAdapter returns an Adapter for boolean columns.
func BoolAdapter() Adapter { return boolAdapter{} }

// timestampAdapter parses either a bare integer epoch (seconds, millis, or
// micros, distinguished by digit count, matching the common conventions
// the original Java importer auto-detected) or an explicit Go reference
// layout given as timestampFormat.
type timestampAdapter struct {
	layout string
}

// NewTimestampAdapter builds a TimestampAdapter. layout is a Go reference-
// time layout string (e.g. time.RFC3339Nano); an empty layout falls back
// to numeric epoch auto-detection, which is what most CSV exports use.
func NewTimestampAdapter(layout string) TimestampAdapter {
	return timestampAdapter{layout: layout}
}

func (t timestampAdapter) GetTimestamp(raw []byte) (int64, error) {
	if t.layout == "" {
		return parseEpoch(raw)
	}
	ts, err := time.Parse(t.layout, string(raw))
	if err != nil {
		return 0, errors.Wrapf(err, "timestamp %q does not match layout %q", raw, t.layout)
	}
	return ts.UnixMicro(), nil
}

func (t timestampAdapter) Write(row RowWriter, colIdx int, raw []byte) error {
	micros, err := t.GetTimestamp(raw)
	if err != nil {
		return err
	}
	row.PutInt64(colIdx, micros)
	return nil
}

func (timestampAdapter) Type() ColumnType { return ColumnTimestamp }

// parseEpoch distinguishes second/milli/micro epoch values by digit count,
// the same heuristic QuestDB's importer applies when no explicit pattern
// is configured: 10 digits ~ seconds (through year 2286), 13 ~ millis,
// 16 ~ micros.
func parseEpoch(raw []byte) (int64, error) {
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "timestamp %q is not a recognized epoch value", raw)
	}
	switch digits := len(raw); {
	case digits <= 10:
		return v * 1_000_000, nil
	case digits <= 13:
		return v * 1_000, nil
	default:
		return v, nil
	}
}
