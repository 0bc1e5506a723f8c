package table

import (
	"encoding/binary"
	"math"

	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/symbol"
	"github.com/pkg/errors"
)

// Row buffers one record's column values between NewRow and Append/Cancel,
// matching spec.md §6's "newRow(ts) -> row" / "row.put(colIdx, bytes) /
// cancel() / append()" table-writer contract. Nothing is written to disk
// until Append: Cancel simply discards the buffered values, which is how
// the loader implements atomicity SKIP_ROW (spec.md §4.5, §7.4).
type Row struct {
	w         *Writer
	ts        int64
	partition string

	fixed    [][]byte // 9-byte (present-flag + 8-byte payload) buffers, fixed columns only
	strings  [][]byte // raw bytes, string columns only
	present  []bool
	symbols  []int32 // interned key, symbol columns only; -1 if not yet put

	canceled bool
	appended bool
}

var _ lexer.RowWriter = (*Row)(nil)

func newRowBuffers(n int) ([][]byte, [][]byte, []bool, []int32) {
	fixed := make([][]byte, n)
	strings := make([][]byte, n)
	present := make([]bool, n)
	symbols := make([]int32, n)
	for i := range symbols {
		symbols[i] = -1
	}
	return fixed, strings, present, symbols
}

func (r *Row) PutString(colIdx int, v string) {
	r.strings[colIdx] = []byte(v)
	r.present[colIdx] = true
}

func (r *Row) PutInt64(colIdx int, v int64) {
	buf := make([]byte, 9)
	buf[0] = 1
	binary.LittleEndian.PutUint64(buf[1:], uint64(v))
	r.fixed[colIdx] = buf
	r.present[colIdx] = true
}

func (r *Row) PutFloat64(colIdx int, v float64) {
	buf := make([]byte, 9)
	buf[0] = 1
	binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v))
	r.fixed[colIdx] = buf
	r.present[colIdx] = true
}

func (r *Row) PutBool(colIdx int, v bool) {
	buf := make([]byte, 9)
	buf[0] = 1
	if v {
		buf[1] = 1
	}
	r.fixed[colIdx] = buf
	r.present[colIdx] = true
}

// PutSymbol interns raw into this column's per-worker symbol dictionary
// (spec.md §4.6) and buffers the resulting key.
func (r *Row) PutSymbol(colIdx int, raw []byte) {
	dict := r.w.symbolDicts[colIdx]
	r.symbols[colIdx] = dict.Intern(string(raw))
	r.present[colIdx] = true
}

func (r *Row) PutNull(colIdx int) {
	r.present[colIdx] = false
}

// Cancel discards every buffered value for this row; a subsequent Append
// is a no-op. Used by the loader under atomicity SKIP_ROW (spec.md §4.5).
func (r *Row) Cancel() {
	r.canceled = true
}

// Canceled reports whether Cancel has been called on this row.
func (r *Row) Canceled() bool {
	return r.canceled
}

// Append writes every buffered column value to this partition's on-disk
// files and counts the row toward the partition's row count (spec.md §3
// "Each staging-table partition's row count equals the number of entries
// in its MergedIndex minus rows rejected by type adapters").
func (r *Row) Append() error {
	if r.canceled || r.appended {
		return nil
	}
	r.appended = true

	p, err := r.w.partitionFor(r.partition)
	if err != nil {
		return err
	}

	for i, c := range r.w.schema.Columns {
		fixedName, offsetsName, dataName, keyName := fileNames(c)
		switch c.Type {
		case lexer.ColumnString:
			if err := r.appendString(p, i, offsetsName, dataName); err != nil {
				return err
			}
		case lexer.ColumnSymbol:
			if err := r.appendSymbol(p, i, keyName); err != nil {
				return err
			}
		default:
			if err := r.appendFixed(p, i, fixedName); err != nil {
				return err
			}
		}
	}

	r.w.rowCounts[r.partition]++
	return nil
}

func (r *Row) appendFixed(p *partitionFiles, colIdx int, name string) error {
	f, err := r.w.fileFor(p, colIdx, p.fixed, name)
	if err != nil {
		return err
	}
	buf := r.fixed[colIdx]
	if !r.present[colIdx] || buf == nil {
		buf = make([]byte, 9) // present-flag 0, zero payload: encodes null
	}
	if _, err := f.Write(buf); err != nil {
		return errors.Wrapf(err, "appending fixed column %d", colIdx)
	}
	return nil
}

func (r *Row) appendString(p *partitionFiles, colIdx int, offsetsName, dataName string) error {
	dataFile, err := r.w.fileFor(p, colIdx, p.data, dataName)
	if err != nil {
		return err
	}
	offsetsFile, err := r.w.fileFor(p, colIdx, p.offsets, offsetsName)
	if err != nil {
		return err
	}
	v := r.strings[colIdx]
	if r.present[colIdx] && len(v) > 0 {
		if _, err := dataFile.Write(v); err != nil {
			return errors.Wrapf(err, "appending string column %d data", colIdx)
		}
		p.offTail[colIdx] += int64(len(v))
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(p.offTail[colIdx]))
	if _, err := offsetsFile.Write(buf); err != nil {
		return errors.Wrapf(err, "appending string column %d offset", colIdx)
	}
	return nil
}

func (r *Row) appendSymbol(p *partitionFiles, colIdx int, keyName string) error {
	f, err := r.w.fileFor(p, colIdx, p.keys, keyName)
	if err != nil {
		return err
	}
	key := symbol.NullKey
	if r.present[colIdx] {
		key = r.symbols[colIdx]
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(key))
	if _, err := f.Write(buf); err != nil {
		return errors.Wrapf(err, "appending symbol column %d key", colIdx)
	}
	return nil
}
