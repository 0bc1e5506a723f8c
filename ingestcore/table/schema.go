// Package table implements the staging-table writer side of the "Table
// writer" collaborator spec.md §6 names: newRow(ts),
// row.put/cancel/append, commit(syncMode), addIndex, getMetadata(),
// getSymbolMapWriter(col); attachPartition belongs to the final table and
// is the attacher package's TableWriter interface. Storage is
// a plain per-partition columnar layout: fixed-width columns get one
// flat file, string columns get an offsets+data pair, symbol columns get
// a 4-byte key file (the same format ingestcore/symbol rewrites in
// place).
package table

import "github.com/featurebasedb/bulkload/ingestcore/lexer"

// Column describes one column of the table being loaded.
type Column struct {
	Name string
	Type lexer.ColumnType
	// SymbolHint is schemadetect's estimated distinct-value count for a
	// Symbol column, used only to pre-size that column's per-worker
	// dictionary (symbol.NewDictSized). Zero for every other column type.
	SymbolHint int
}

// Schema is the ordered column list shared by every staging table and the
// final table.
type Schema struct {
	Columns []Column
}

// ColumnIndex returns the index of the column called name, or -1 if the
// schema has no such column.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// fileNames returns the on-disk file name(s) backing column c, relative
// to a partition directory.
func fileNames(c Column) (fixed, offsets, data, key string) {
	switch c.Type {
	case lexer.ColumnString:
		return "", c.Name + ".offsets", c.Name + ".data", ""
	case lexer.ColumnSymbol:
		return "", "", "", c.Name + ".key"
	default:
		return c.Name + ".fix", "", "", ""
	}
}
