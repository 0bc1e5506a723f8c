// Package loader implements the IndexMerger + PartitionLoader (spec.md
// §4.5): per partition, k-way merge that partition's per-worker index
// shards into one time-sorted MergedIndex, then walk it to random-read
// rows from the source file in timestamp order and append them to a
// worker's staging table.
package loader

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/featurebasedb/bulkload/ingestcore/config"
	"github.com/featurebasedb/bulkload/ingestcore/errcode"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/indexentry"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/table"
	"github.com/featurebasedb/bulkload/ingestcore/workqueue"
)

// circuitBreakerBatch is how many rows Load processes between checks of a
// shared ErrorSlot (spec.md §5: "Long operations check an external
// circuit-breaker sparingly, at loader row-batch boundaries only").
const circuitBreakerBatch = 1000

// MergedIndexName is the file spec.md §6 calls the per-partition merged
// index: "workRoot/{tableName}/{partitionName}/__index".
const MergedIndexName = "__index"

// MergeParams bundles the IndexMerger step's inputs.
type MergeParams struct {
	Facade        fswrap.Facade
	PartitionDir  string // workRoot/{table}/{partitionName}
}

// Merge performs spec.md §4.5 steps 1-2: enumerate the partition's index
// shards, memory-map each as a sorted run, and k-way merge them ascending
// by timestamp into PartitionDir/__index, sized sum(run sizes). Returns the
// merged entry count.
func Merge(p MergeParams) (int64, error) {
	names, err := p.Facade.ListDir(p.PartitionDir)
	if err != nil {
		return 0, errcode.Wrap(err, errcode.IO, "listing partition index shards")
	}
	sort.Slice(names, func(i, j int) bool {
		wi, ci := shardOrder(names[i])
		wj, cj := shardOrder(names[j])
		if wi != wj {
			return wi < wj
		}
		return ci < cj
	})

	var runs []indexentry.View
	var totalBytes int64
	var openFiles []fswrap.ReadFile
	var mapped [][]byte
	defer func() {
		for i, f := range openFiles {
			if mapped[i] != nil {
				_ = f.Munmap(mapped[i])
			}
			_ = f.Close()
		}
	}()

	for _, name := range names {
		if name == MergedIndexName {
			continue
		}
		f, err := p.Facade.OpenRO(filepath.Join(p.PartitionDir, name))
		if err != nil {
			return 0, errcode.Wrap(err, errcode.IO, "opening index shard")
		}
		length, err := f.Length()
		if err != nil {
			return 0, errcode.Wrap(err, errcode.IO, "stat index shard")
		}
		openFiles = append(openFiles, f)
		if length == 0 {
			mapped = append(mapped, nil)
			continue
		}
		data, err := f.Mmap(0, int(length))
		if err != nil {
			return 0, errcode.Wrap(err, errcode.IO, "mmap index shard")
		}
		mapped = append(mapped, data)
		runs = append(runs, indexentry.View(data))
		totalBytes += length
	}

	out := make([]byte, totalBytes)
	indexentry.MergeToBuffer(runs, out)

	wf, err := p.Facade.OpenRW(filepath.Join(p.PartitionDir, MergedIndexName))
	if err != nil {
		return 0, errcode.Wrap(err, errcode.IO, "creating merged index")
	}
	defer wf.Close()
	if _, err := wf.Write(out); err != nil {
		return 0, errcode.Wrap(err, errcode.IO, "writing merged index")
	}

	n, _ := indexentry.Count(totalBytes)
	return n, nil
}

// shardOrder parses a "{workerId}_{chunkId}" shard filename into its two
// integers purely so Merge enumerates a partition's shards in a
// deterministic order. indexentry.Merge itself breaks timestamp ties on
// each entry's own source byte Offset, so it merges correctly no matter
// what order its runs are passed in.
func shardOrder(name string) (int, int) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, _ := strconv.Atoi(parts[0])
	c, _ := strconv.Atoi(parts[1])
	return w, c
}

// LoadParams bundles one PartitionLoader task's inputs (spec.md §4.5 steps
// 3-5).
type LoadParams struct {
	Facade        fswrap.Facade
	PartitionDir  string // workRoot/{table}/{partitionName}
	PartitionName string
	SourcePath    string
	MaxLineLength int64
	Delimiter     byte
	Schema        table.Schema
	Adapters      []lexer.Adapter // one per schema column, same order
	Atomicity     config.Atomicity
	Writer        *table.Writer
	// Faulted is the Coordinator's shared error slot (spec.md §5); if
	// non-nil, Load checks it every circuitBreakerBatch rows and bails
	// out early once a sibling task has already faulted, rather than
	// finishing a doomed partition.
	Faulted *workqueue.ErrorSlot
}

// LoadResult reports what one PartitionLoader task did.
type LoadResult struct {
	RowsWritten  int64
	RowsSkipped  int64
}

// Load performs spec.md §4.5 steps 3-5: stream PartitionDir/__index (which
// Merge must have already produced), pread exactly MaxLineLength bytes per
// record from the source file, parse it, adapt each field, and append the
// row to Writer. The written row order is therefore ascending timestamp
// with ties broken by source byte offset, since that is MergedIndex's own
// order (spec.md §5 "Ordering guarantees").
func Load(p LoadParams) (LoadResult, error) {
	idxFile, err := p.Facade.OpenRO(filepath.Join(p.PartitionDir, MergedIndexName))
	if err != nil {
		return LoadResult{}, errcode.Wrap(err, errcode.IO, "opening merged index")
	}
	defer idxFile.Close()
	idxLen, err := idxFile.Length()
	if err != nil {
		return LoadResult{}, errcode.Wrap(err, errcode.IO, "stat merged index")
	}

	src, err := p.Facade.OpenRO(p.SourcePath)
	if err != nil {
		return LoadResult{}, errcode.Wrap(err, errcode.IO, "opening source file")
	}
	defer src.Close()
	srcLen, err := src.Length()
	if err != nil {
		return LoadResult{}, errcode.Wrap(err, errcode.IO, "stat source file")
	}

	lx := lexer.Of(p.Delimiter)
	slab := make([]byte, p.MaxLineLength)

	var res LoadResult
	var idxView indexentry.View
	if idxLen > 0 {
		data, err := idxFile.Mmap(0, int(idxLen))
		if err != nil {
			return LoadResult{}, errcode.Wrap(err, errcode.IO, "mmap merged index")
		}
		defer idxFile.Munmap(data)
		idxView = indexentry.View(data)
	}

	for i := 0; i < idxView.Len(); i++ {
		if p.Faulted != nil && i%circuitBreakerBatch == 0 && p.Faulted.Faulted() {
			return res, errcode.New(errcode.IO, "aborting partition load: a sibling task already faulted")
		}
		entry := idxView.At(i)
		n, err := src.Pread(slab, entry.Offset)
		if err != nil {
			return res, errcode.Wrap(err, errcode.IO, "pread source row")
		}

		row := p.Writer.NewRow(entry.Timestamp, p.PartitionName)
		applyOK := true
		terminated := lx.ParseOne(slab[:n], func(line int64, fields [][]byte) {
			applyOK = applyRow(row, fields, p.Schema, p.Adapters, p.Atomicity, &res)
		})
		if !terminated && entry.Offset+int64(n) == srcLen {
			// The file's last line has no trailing newline; the indexer
			// flushed it with ParseLast, so it is a whole record here too.
			lx.ParseLast(slab[:n], func(line int64, fields [][]byte) {
				applyOK = applyRow(row, fields, p.Schema, p.Adapters, p.Atomicity, &res)
			})
			terminated = true
		}
		if !terminated {
			// Record exceeds MaxLineLength, violating the phase-2
			// invariant (spec.md §9): treat as a dropped row, the same
			// outcome as a column-adaptation failure under SKIP_ROW.
			row.Cancel()
			res.RowsSkipped++
			continue
		}
		if !applyOK {
			return res, errcode.New(errcode.TypeAdaptation, "column adaptation failed under SKIP_ALL")
		}
		if row.Canceled() {
			res.RowsSkipped++
			continue
		}
		if err := row.Append(); err != nil {
			return res, errcode.Wrap(err, errcode.IO, "appending row")
		}
		res.RowsWritten++
	}

	return res, nil
}

// applyRow adapts every field of one record into row, honoring Atomicity
// on failure (spec.md §4.5 step 4, §7.4). It returns false only when
// Atomicity is SKIP_ALL and a column failed, signaling the caller to abort
// the whole partition.
func applyRow(row *table.Row, fields [][]byte, schema table.Schema, adapters []lexer.Adapter, atomicity config.Atomicity, res *LoadResult) bool {
	for i, adapter := range adapters {
		var raw []byte
		if i < len(fields) {
			raw = fields[i]
		}
		if err := adapter.Write(row, i, raw); err != nil {
			switch atomicity {
			case config.AtomicitySkipColumn:
				row.PutNull(i)
			case config.AtomicitySkipRow:
				row.Cancel()
				return true
			case config.AtomicitySkipAll:
				return false
			}
		}
	}
	return true
}
