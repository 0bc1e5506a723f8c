// Package symbolphase drives the SymbolMerger phase (spec.md §4.6): for
// each symbol column, merge every staging table's symbol dictionary into
// the final table's dictionary, then rewrite every affected partition's
// symbol-key column in place using the resulting remap.
package symbolphase

import (
	"github.com/featurebasedb/bulkload/ingestcore/errcode"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/symbol"
	"github.com/featurebasedb/bulkload/ingestcore/table"
)

// Reconcile runs spec.md §4.6 for every symbol column of schema, merging
// writers' per-worker dictionaries in writers' slice order ("dictionaries
// are merged in worker index order") and rewriting each worker's staged
// key files in place. It returns the final, reconciled dictionary per
// symbol column index.
func Reconcile(facade fswrap.Facade, schema table.Schema, writers []*table.Writer) (map[int]*symbol.Dict, error) {
	final := make(map[int]*symbol.Dict)
	for colIdx, col := range schema.Columns {
		if col.Type != lexer.ColumnSymbol {
			continue
		}
		finalDict := symbol.NewDict()
		for _, w := range writers {
			workerDict := w.GetSymbolMapWriter(colIdx)
			remap := symbol.Merge(finalDict, workerDict)
			if err := rewriteWorkerColumn(facade, w, colIdx, remap); err != nil {
				return nil, err
			}
		}
		final[colIdx] = finalDict
	}
	return final, nil
}

// rewriteWorkerColumn persists remap next to the column in every partition
// w has touched, then rewrites that partition's key file in place (spec.md
// §4.6 steps 3-4).
func rewriteWorkerColumn(facade fswrap.Facade, w *table.Writer, colIdx int, remap []int32) error {
	remapBytes := symbol.EncodeRemap(remap)
	for _, partitionName := range w.Partitions() {
		keyPath := w.KeyFilePath(partitionName, colIdx)
		if keyPath == "" {
			continue
		}

		remapFile, err := facade.OpenRW(keyPath + ".remap")
		if err != nil {
			return errcode.Wrap(err, errcode.IO, "creating symbol remap file")
		}
		if _, err := remapFile.Write(remapBytes); err != nil {
			remapFile.Close()
			return errcode.Wrap(err, errcode.IO, "writing symbol remap file")
		}
		if err := remapFile.Close(); err != nil {
			return errcode.Wrap(err, errcode.IO, "closing symbol remap file")
		}

		if err := rewriteKeyFile(facade, keyPath, remap); err != nil {
			return err
		}
	}
	return nil
}

func rewriteKeyFile(facade fswrap.Facade, keyPath string, remap []int32) error {
	f, err := facade.OpenRW(keyPath)
	if err != nil {
		return errcode.Wrap(err, errcode.IO, "opening symbol key column")
	}
	defer f.Close()

	length, err := f.Length()
	if err != nil {
		return errcode.Wrap(err, errcode.IO, "stat symbol key column")
	}
	if length == 0 {
		return nil
	}

	data, err := f.Mmap(0, int(length))
	if err != nil {
		return errcode.Wrap(err, errcode.IO, "mmap symbol key column")
	}
	defer f.Munmap(data)

	symbol.RewriteKeys(data, remap)
	return nil
}
