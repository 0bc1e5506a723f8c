package table

import (
	"path/filepath"
	"sort"

	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/symbol"
	"github.com/pkg/errors"
)

// Writer is one worker's staging table: the per-worker scratch area spec.md
// §6 places at `{workRoot}/{tableName}/{tableName}__{i}/`, holding a
// disjoint subset of partitions until the attach phase moves them into the
// final table.
type Writer struct {
	facade   fswrap.Facade
	root     string
	schema   Schema
	workerID int
	sync     bool

	partitions  map[string]*partitionFiles
	symbolDicts map[int]*symbol.Dict
	rowCounts   map[string]int64
}

// partitionFiles holds the open handles for one partition directory;
// opened lazily on first row, closed on Commit.
type partitionFiles struct {
	dir     string
	fixed   map[int]fswrap.WriteFile
	offsets map[int]fswrap.WriteFile
	data    map[int]fswrap.WriteFile
	keys    map[int]fswrap.WriteFile
	offTail map[int]int64 // running end-of-data offset, for the offsets file
}

// NewWriter creates a staging table writer rooted at
// {workRoot}/{tableName}/{tableName}__{workerID}.
func NewWriter(facade fswrap.Facade, workRoot, tableName string, workerID int, schema Schema, sync bool) (*Writer, error) {
	root := filepath.Join(workRoot, tableName, tableName+"__"+itoa(workerID))
	if err := facade.MkdirAll(root); err != nil {
		return nil, err
	}
	dicts := make(map[int]*symbol.Dict)
	for i, c := range schema.Columns {
		if c.Type == lexer.ColumnSymbol {
			dicts[i] = symbol.NewDictSized(c.SymbolHint)
		}
	}
	return &Writer{
		facade:      facade,
		root:        root,
		schema:      schema,
		workerID:    workerID,
		sync:        sync,
		partitions:  make(map[string]*partitionFiles),
		symbolDicts: dicts,
		rowCounts:   make(map[string]int64),
	}, nil
}

// Root returns the staging table's root directory, used by the Attacher
// to find the partitions to move.
func (w *Writer) Root() string { return w.root }

// WorkerID returns the worker index this writer belongs to.
func (w *Writer) WorkerID() int { return w.workerID }

// Schema returns the column list shared by every staging table.
func (w *Writer) Schema() Schema { return w.schema }

// Partitions returns the names of every partition this writer has opened a
// directory for, sorted by name. Used by the SymbolMerger
// (spec.md §4.6) and the Attacher (spec.md §4.7) to enumerate this worker's
// partitions without re-deriving them from the filesystem.
func (w *Writer) Partitions() []string {
	names := make([]string, 0, len(w.partitions))
	for name := range w.partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PartitionDir returns the on-disk directory for a partition this writer
// has touched, or "" if it hasn't touched that partition.
func (w *Writer) PartitionDir(name string) string {
	p, ok := w.partitions[name]
	if !ok {
		return ""
	}
	return p.dir
}

// KeyFilePath returns the on-disk path of a symbol column's key file within
// a partition this writer has touched, or "" if the writer hasn't created
// that partition/column pair yet.
func (w *Writer) KeyFilePath(partitionName string, colIdx int) string {
	p, ok := w.partitions[partitionName]
	if !ok {
		return ""
	}
	_, _, _, keyName := fileNames(w.schema.Columns[colIdx])
	if keyName == "" {
		return ""
	}
	return filepath.Join(p.dir, keyName)
}

// NewRow begins a new row bound for partitionName with row-timestamp ts
// (spec.md §6 "newRow(ts) → row"). The caller supplies the partition name
// directly since partition-key computation is the indexer/loader's job,
// not the writer's.
func (w *Writer) NewRow(ts int64, partitionName string) *Row {
	fixed, strings, present, symbols := newRowBuffers(len(w.schema.Columns))
	return &Row{
		w:         w,
		ts:        ts,
		partition: partitionName,
		fixed:     fixed,
		strings:   strings,
		present:   present,
		symbols:   symbols,
	}
}

// AddIndex is a no-op placeholder for the external table writer's
// secondary block-index hint (spec.md §6 "addIndex(col, blockCap)"); this
// port relies solely on the MergedIndex for row ordering and doesn't build
// an additional per-column block index.
func (w *Writer) AddIndex(colIdx int, blockCap int) {}

// GetSymbolMapWriter returns the per-worker symbol dictionary for colIdx,
// creating the partition-level key files lazily as rows are appended.
func (w *Writer) GetSymbolMapWriter(colIdx int) *symbol.Dict {
	return w.symbolDicts[colIdx]
}

// GetMetadata reports the schema and per-partition row counts this writer
// has produced so far.
func (w *Writer) GetMetadata() Metadata {
	counts := make(map[string]int64, len(w.rowCounts))
	for k, v := range w.rowCounts {
		counts[k] = v
	}
	return Metadata{Schema: w.schema, RowCounts: counts, WorkerID: w.workerID}
}

// Commit fsyncs (if sync is true) and closes every open file across every
// partition this writer has touched (spec.md §4.5 step 5: "On partition
// completion the writer is committed with durability sync").
func (w *Writer) Commit(sync bool) error {
	for _, p := range w.partitions {
		for _, group := range []map[int]fswrap.WriteFile{p.fixed, p.offsets, p.data, p.keys} {
			for _, f := range group {
				if sync {
					if err := f.Sync(); err != nil {
						return err
					}
				}
				if err := f.Close(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (w *Writer) partitionFor(name string) (*partitionFiles, error) {
	if p, ok := w.partitions[name]; ok {
		return p, nil
	}
	dir := filepath.Join(w.root, name)
	if err := w.facade.MkdirAll(dir); err != nil {
		return nil, errors.Wrapf(err, "creating partition directory %s", dir)
	}
	p := &partitionFiles{
		dir:     dir,
		fixed:   make(map[int]fswrap.WriteFile),
		offsets: make(map[int]fswrap.WriteFile),
		data:    make(map[int]fswrap.WriteFile),
		keys:    make(map[int]fswrap.WriteFile),
		offTail: make(map[int]int64),
	}
	w.partitions[name] = p
	return p, nil
}

func (w *Writer) fileFor(p *partitionFiles, colIdx int, group map[int]fswrap.WriteFile, name string) (fswrap.WriteFile, error) {
	if f, ok := group[colIdx]; ok {
		return f, nil
	}
	f, err := w.facade.OpenRW(filepath.Join(p.dir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "opening column file %s", name)
	}
	group[colIdx] = f
	return f, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}
