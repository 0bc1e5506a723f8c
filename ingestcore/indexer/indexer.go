// Package indexer implements the PartitionIndexer (spec.md §4.3): given an
// indexing chunk produced by the boundary scan/reconcile phase, it scans
// the chunk's bytes with the delimited-text lexer, extracts each record's
// timestamp and partition key, and appends (timestamp, offset) IndexEntry
// pairs to the appropriate per-(partition, worker) shard file.
package indexer

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/featurebasedb/bulkload/ingestcore/boundary"
	"github.com/featurebasedb/bulkload/ingestcore/errcode"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/indexentry"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/partitionby"
)

// Params bundles one PartitionIndexer task's inputs (spec.md §4.3's
// "(lo, hi, starting_line, workerId)" plus the table/schema configuration
// every task shares).
type Params struct {
	Facade        fswrap.Facade
	SourcePath    string
	Chunk         boundary.IndexingChunk
	WorkerID      int
	WorkDir       string // workRoot/{table}
	Delimiter     byte
	TimestampCol  int
	TimestampAdpt lexer.TimestampAdapter
	PartitionUnit partitionby.Unit
	MmapWindow    int64
}

// Result is what one PartitionIndexer task reports back to the Coordinator.
type Result struct {
	// Partitions is the set of distinct partition names this task wrote
	// entries to (spec.md §4.3: "the worker records each distinct
	// partition key it has written to in its local set").
	Partitions []string
	// MaxLineLength is the maximum record byte length this task observed
	// (spec.md §4.3, used by the loader's fixed read-slab sizing in §4.5).
	MaxLineLength int64
	// ErrorCount is the number of records skipped for a bad timestamp
	// field (spec.md §7.4: "bad timestamp in indexing phase: record is
	// dropped (not indexed)").
	ErrorCount int64
	// RecordCount is the number of records the lexer delivered for this
	// chunk, including those counted in ErrorCount, so RecordCount -
	// ErrorCount records were indexed; used by the exactly-once coverage
	// property (spec.md §8).
	RecordCount int64
}

// Run executes one PartitionIndexer task (spec.md §4.3). It mmaps the
// source file in windows of at most p.MmapWindow bytes, feeding complete
// records to the lexer; a record's bytes never straddle window boundaries
// in the output since an incomplete trailing record is carried forward and
// re-presented with the next window.
func Run(p Params) (Result, error) {
	src, err := p.Facade.OpenRO(p.SourcePath)
	if err != nil {
		return Result{}, errcode.Wrap(err, errcode.IO, "opening source file")
	}
	defer src.Close()

	shards := newShardSet(p.Facade, p.WorkDir, p.WorkerID, p.Chunk.ChunkID)
	defer shards.closeAll()

	lx := lexer.Of(p.Delimiter)
	lx.SetLine(p.Chunk.StartingLine)

	var res Result
	var appendErr error

	record := func(recordOffset, recordLen int64, fields [][]byte) {
		res.RecordCount++
		if recordLen > res.MaxLineLength {
			res.MaxLineLength = recordLen
		}

		ts, tsErr := p.TimestampAdpt.GetTimestamp(fields[p.TimestampCol])
		if tsErr != nil {
			res.ErrorCount++
			return
		}
		key := p.PartitionUnit.Floor(ts)
		name := p.PartitionUnit.Name(key)
		if err := shards.append(name, indexentry.Entry{Timestamp: ts, Offset: recordOffset}); err != nil && appendErr == nil {
			appendErr = err
		}
	}

	var leftover []byte
	pos := p.Chunk.Lo

	for pos < p.Chunk.Hi || len(leftover) > 0 {
		window := p.MmapWindow
		if remaining := p.Chunk.Hi - pos; remaining < window {
			window = remaining
		}
		var data, mapped []byte
		if window > 0 {
			// mmap offsets must be page-aligned: map from the start of the
			// page holding pos and skip the bytes before pos.
			mapStart := pos &^ (int64(os.Getpagesize()) - 1)
			mapped, err = src.Mmap(mapStart, int(pos-mapStart+window))
			if err != nil {
				return res, errcode.Wrap(err, errcode.IO, "mmap indexing window")
			}
			data = mapped[pos-mapStart:]
		}
		buf := append(append([]byte(nil), leftover...), data...)
		bufFileStart := pos - int64(len(leftover))

		consumed, incomplete := lx.ParseIndexed(buf, func(offset, length int, line int64, fields [][]byte) {
			record(bufFileStart+int64(offset), int64(length), fields)
		})

		if mapped != nil {
			if err := src.Munmap(mapped); err != nil {
				return res, errcode.Wrap(err, errcode.IO, "munmap indexing window")
			}
		}
		if appendErr != nil {
			return res, errcode.Wrap(appendErr, errcode.IO, "writing index shard")
		}
		pos += window
		if incomplete {
			leftover = append([]byte(nil), buf[consumed:]...)
			if window == 0 {
				// No more bytes left in this chunk and still incomplete:
				// legitimate only at true end of file, where ParseLast
				// (below) finishes the unterminated final record.
				break
			}
		} else {
			leftover = nil
		}
	}

	if len(leftover) > 0 {
		leftoverStart := p.Chunk.Hi - int64(len(leftover))
		lx.ParseLast(leftover, func(line int64, fields [][]byte) {
			record(leftoverStart, int64(len(leftover)), fields)
		})
		if appendErr != nil {
			return res, errcode.Wrap(appendErr, errcode.IO, "writing index shard")
		}
	}

	res.Partitions = shards.names()
	return res, nil
}

// shardSet owns the open per-partition shard files for one indexer task.
type shardSet struct {
	facade   fswrap.Facade
	dir      string
	workerID int
	chunkID  int
	files    map[string]fswrap.WriteFile
}

func newShardSet(facade fswrap.Facade, workDir string, workerID, chunkID int) *shardSet {
	return &shardSet{
		facade:   facade,
		dir:      workDir,
		workerID: workerID,
		chunkID:  chunkID,
		files:    make(map[string]fswrap.WriteFile),
	}
}

func (s *shardSet) append(partitionName string, e indexentry.Entry) error {
	f, err := s.fileFor(partitionName)
	if err != nil {
		return err
	}
	buf := make([]byte, indexentry.Size)
	e.Put(buf)
	_, err = f.Write(buf)
	return err
}

func (s *shardSet) fileFor(partitionName string) (fswrap.WriteFile, error) {
	if f, ok := s.files[partitionName]; ok {
		return f, nil
	}
	partDir := filepath.Join(s.dir, partitionName)
	if err := s.facade.MkdirAll(partDir); err != nil {
		return nil, errcode.Wrap(err, errcode.IO, "creating partition index directory")
	}
	path := filepath.Join(partDir, strconv.Itoa(s.workerID)+"_"+strconv.Itoa(s.chunkID))
	f, err := s.facade.OpenRW(path)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.IO, "opening index shard")
	}
	s.files[partitionName] = f
	return f, nil
}

func (s *shardSet) names() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names
}

func (s *shardSet) closeAll() {
	for _, f := range s.files {
		_ = f.Close()
	}
}
