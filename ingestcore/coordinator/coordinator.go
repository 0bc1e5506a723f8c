// Package coordinator drives the five-phase pipeline spec.md §4.4
// describes: boundary scan, indexing, merge & load, symbol reconciliation,
// and attach. It owns the work directory for the lifetime of one load and
// dispatches every phase's tasks onto a shared workqueue.Pool, draining
// cooperatively so the pipeline makes progress even at WorkerCount == 1
// (spec.md §5, §9).
package coordinator

import (
	"crypto/rand"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/featurebasedb/bulkload/ingestcore/attacher"
	"github.com/featurebasedb/bulkload/ingestcore/boundary"
	"github.com/featurebasedb/bulkload/ingestcore/config"
	"github.com/featurebasedb/bulkload/ingestcore/errcode"
	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/indexer"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/loader"
	"github.com/featurebasedb/bulkload/ingestcore/logger"
	"github.com/featurebasedb/bulkload/ingestcore/schemadetect"
	"github.com/featurebasedb/bulkload/ingestcore/symbolphase"
	"github.com/featurebasedb/bulkload/ingestcore/table"
	"github.com/featurebasedb/bulkload/ingestcore/workqueue"
	"github.com/google/uuid"
	"github.com/oklog/ulid"
)

// delimiterSampleSize bounds how many leading bytes of the source file the
// delimiter auto-detector and schema detector inspect (spec.md §6
// "scanning first N bytes").
const delimiterSampleSize = 64 * 1024

// Coordinator drives one bulk load invocation (spec.md §6 "Invocation").
type Coordinator struct {
	cfg      config.Config
	facade   fswrap.Facade
	log      logger.Logger
	pool     *workqueue.Pool
	tw       attacher.TableWriter
	faulted  workqueue.ErrorSlot
	existing *TableMetadata
	// runName disambiguates this Coordinator's scratch staging area from
	// any other concurrent run against the same WorkRoot/table name
	// (SPEC_FULL.md §11): a uuid suffix appended to the table name when
	// deriving the work directory and every staging table's root.
	runName string
}

// New constructs a Coordinator. tw is the external table-writer
// collaborator spec.md §6 requires for attachPartition; facade is the
// filesystem collaborator. log is tagged with a ulid run token so this
// run's lines can be told apart from a concurrent or prior run's; the work
// directory is told apart by runName's uuid suffix.
func New(cfg config.Config, facade fswrap.Facade, log logger.Logger, tw attacher.TableWriter) *Coordinator {
	runID := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return &Coordinator{
		cfg:     cfg,
		facade:  facade,
		log:     log.WithPrefix("run=" + runID.String() + " "),
		pool:    workqueue.New(cfg.WorkerCount),
		tw:      tw,
		runName: cfg.TableName + "-" + uuid.New().String(),
	}
}

// Report summarizes a completed load.
type Report struct {
	PartitionNames []string
	RowsWritten    int64
	RowsSkipped    int64
	IndexErrors    int64
	Attach         *attacher.Report
}

// Run executes all five phases (spec.md §4.4) and unconditionally removes
// the work directory on the way out, success or failure (spec.md §3 "Work
// directory ... is created anew per run and deleted on exit").
func (c *Coordinator) Run() (Report, error) {
	if err := c.cfg.Validate(); err != nil {
		return Report{}, errcode.Wrap(err, errcode.Configuration, "validating configuration")
	}

	workDir := filepath.Join(c.cfg.WorkRoot, c.runName)
	if err := c.facade.MkdirAll(workDir); err != nil {
		return Report{}, errcode.Wrap(err, errcode.IO, "creating work directory")
	}
	defer func() {
		if err := c.facade.Rmdir(workDir); err != nil {
			c.log.Warnf("coordinator: cleaning up work directory %s: %v", workDir, err)
		}
	}()

	sourcePath := filepath.Join(c.cfg.InputRoot, c.cfg.InputFileName)
	src, err := c.facade.OpenRO(sourcePath)
	if err != nil {
		return Report{}, errcode.Wrap(err, errcode.IO, "opening source file")
	}
	fileLen, err := src.Length()
	if err != nil {
		src.Close()
		return Report{}, errcode.Wrap(err, errcode.IO, "stat source file")
	}
	if fileLen == 0 {
		src.Close()
		return Report{}, errcode.New(errcode.Configuration, "input file is empty")
	}

	sampleLen := fileLen
	if sampleLen > delimiterSampleSize {
		sampleLen = delimiterSampleSize
	}
	sample := make([]byte, sampleLen)
	if _, err := src.Pread(sample, 0); err != nil {
		src.Close()
		return Report{}, errcode.Wrap(err, errcode.IO, "reading delimiter sample")
	}
	src.Close()

	delim, err := c.resolveDelimiter(sample)
	if err != nil {
		return Report{}, err
	}

	detected, err := schemadetect.Detect(sample, delim, c.cfg.ForceHeader, c.cfg.TimestampColumn, c.cfg.TimestampFormat)
	if err != nil {
		return Report{}, err
	}
	timestampAdapter, ok := detected.Adapters[detected.TimestampColumn].(lexer.TimestampAdapter)
	if !ok {
		return Report{}, errcode.New(errcode.Configuration, "timestamp column adapter does not support timestamp extraction")
	}

	// Table-structure validation (SPEC_FULL.md §12): checked once, before
	// any phase-1 task is dispatched.
	if err := c.Validate(len(detected.Schema.Columns)); err != nil {
		return Report{}, err
	}

	// Phase 1: boundary scan + reconciliation.
	chunks, err := c.scanBoundaries(sourcePath, fileLen)
	if err != nil {
		return Report{}, err
	}

	// Phase 2: indexing.
	partitionSet, maxLineLength, indexErrors, err := c.index(sourcePath, workDir, chunks, delim, detected, timestampAdapter)
	if err != nil {
		return Report{}, err
	}
	partitionNames := sortedKeys(partitionSet)

	// Phase 3: merge & load.
	writers, loadRes, err := c.mergeAndLoad(sourcePath, workDir, partitionNames, maxLineLength, delim, detected)
	if err != nil {
		return Report{}, err
	}

	// Phase 4: symbol reconciliation.
	if _, err := symbolphase.Reconcile(c.facade, detected.Schema, writers); err != nil {
		return Report{}, err
	}

	// Phase 5: attach.
	report := attacher.Attach(c.facade, writers, c.cfg.TableName, c.cfg.DBRoot, c.tw, c.cfg.WorkerCount, c.log)

	return Report{
		PartitionNames: partitionNames,
		RowsWritten:    loadRes.written,
		RowsSkipped:    loadRes.skipped,
		IndexErrors:    indexErrors,
		Attach:         report,
	}, nil
}

func (c *Coordinator) resolveDelimiter(sample []byte) (byte, error) {
	if c.cfg.ColumnDelimiter >= 0 {
		return byte(c.cfg.ColumnDelimiter), nil
	}
	d, ok := lexer.DetectDelimiter(sample)
	if !ok {
		return 0, errcode.New(errcode.Configuration, "could not auto-detect column delimiter")
	}
	return d, nil
}

func sortedKeys(m map[string]struct{}) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type loadTotals struct {
	written int64
	skipped int64
}

// mergeAndLoad runs phase 3 (spec.md §4.5): one Writer per worker, each
// worker assigned a disjoint slice of partitions round-robin
// (taskDistribution in spec.md §4.4 terms), merging and loading each of
// its partitions, then committing once all of its partitions are done.
func (c *Coordinator) mergeAndLoad(sourcePath, workDir string, partitionNames []string, maxLineLength int64, delim byte, detected schemadetect.Result) ([]*table.Writer, loadTotals, error) {
	w := c.cfg.WorkerCount
	writers := make([]*table.Writer, w)
	for i := 0; i < w; i++ {
		writer, err := table.NewWriter(c.facade, c.cfg.WorkRoot, c.runName, i, detected.Schema, c.cfg.SyncOnCommit)
		if err != nil {
			return nil, loadTotals{}, errcode.Wrap(err, errcode.IO, "creating staging table writer")
		}
		writers[i] = writer
	}

	totals := make([]loadTotals, len(partitionNames))
	// Tasks that share a worker's Writer take turns loading into it.
	writerLocks := make([]sync.Mutex, w)
	tasks := make([]workqueue.Task, len(partitionNames))
	for i, name := range partitionNames {
		i, name := i, name
		workerID := i % w
		partitionDir := filepath.Join(workDir, name)
		tasks[i] = func() error {
			if _, err := loader.Merge(loader.MergeParams{Facade: c.facade, PartitionDir: partitionDir}); err != nil {
				return err
			}
			writerLocks[workerID].Lock()
			res, err := loader.Load(loader.LoadParams{
				Facade:        c.facade,
				PartitionDir:  partitionDir,
				PartitionName: name,
				SourcePath:    sourcePath,
				MaxLineLength: maxLineLength,
				Delimiter:     delim,
				Schema:        detected.Schema,
				Adapters:      detected.Adapters,
				Atomicity:     c.cfg.Atomicity,
				Writer:        writers[workerID],
				Faulted:       &c.faulted,
			})
			writerLocks[workerID].Unlock()
			if err != nil {
				c.faulted.Set(err)
				return err
			}
			totals[i] = loadTotals{written: res.RowsWritten, skipped: res.RowsSkipped}
			return nil
		}
	}
	if err := c.pool.RunBarrier(tasks); err != nil {
		return nil, loadTotals{}, err
	}

	for _, writer := range writers {
		if err := writer.Commit(c.cfg.SyncOnCommit); err != nil {
			return nil, loadTotals{}, errcode.Wrap(err, errcode.IO, "committing staging table")
		}
	}

	var grand loadTotals
	for _, t := range totals {
		grand.written += t.written
		grand.skipped += t.skipped
	}
	return writers, grand, nil
}

func (c *Coordinator) scanBoundaries(sourcePath string, fileLen int64) ([]boundary.IndexingChunk, error) {
	if c.cfg.WorkerCount == 1 {
		// Single-worker fast path (SPEC_FULL.md §12): boundary scanning
		// exists only to parallelize safely across workers, so a lone
		// worker gets the whole file as one indexing chunk.
		return []boundary.IndexingChunk{{Lo: 0, Hi: fileLen, StartingLine: 0, ChunkID: 0}}, nil
	}

	scanChunkSize := c.cfg.MinChunkSize
	n := int((fileLen + scanChunkSize - 1) / scanChunkSize)
	if n < 1 {
		n = 1
	}
	stats := make([]boundary.ChunkStat, n)
	tasks := make([]workqueue.Task, n)
	src, err := c.facade.OpenRO(sourcePath)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.IO, "opening source file for boundary scan")
	}
	defer src.Close()

	for i := 0; i < n; i++ {
		i := i
		lo := int64(i) * scanChunkSize
		hi := lo + scanChunkSize
		if hi > fileLen {
			hi = fileLen
		}
		tasks[i] = func() error {
			data, err := src.Mmap(lo, int(hi-lo))
			if err != nil {
				return errcode.Wrap(err, errcode.IO, "mmap boundary scan chunk")
			}
			defer src.Munmap(data)
			stats[i] = boundary.Scan(data, lo)
			return nil
		}
	}
	if err := c.pool.RunBarrier(tasks); err != nil {
		return nil, err
	}

	boundaries := boundary.Reconcile(stats, fileLen)
	return boundary.Chunks(boundaries), nil
}

func (c *Coordinator) index(sourcePath, workDir string, chunks []boundary.IndexingChunk, delim byte, detected schemadetect.Result, tsAdapter lexer.TimestampAdapter) (map[string]struct{}, int64, int64, error) {
	results := make([]indexer.Result, len(chunks))
	tasks := make([]workqueue.Task, len(chunks))
	for i, chunk := range chunks {
		i, chunk := i, chunk
		workerID := i % c.cfg.WorkerCount
		tasks[i] = func() error {
			res, err := indexer.Run(indexer.Params{
				Facade:        c.facade,
				SourcePath:    sourcePath,
				Chunk:         chunk,
				WorkerID:      workerID,
				WorkDir:       workDir,
				Delimiter:     delim,
				TimestampCol:  detected.TimestampColumn,
				TimestampAdpt: tsAdapter,
				PartitionUnit: c.cfg.PartitionBy.Unit(),
				MmapWindow:    c.cfg.MmapWindow,
			})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		}
	}
	if err := c.pool.RunBarrier(tasks); err != nil {
		return nil, 0, 0, err
	}

	partitions := make(map[string]struct{})
	var maxLineLength, errCount int64
	for _, res := range results {
		for _, p := range res.Partitions {
			partitions[p] = struct{}{}
		}
		if res.MaxLineLength > maxLineLength {
			maxLineLength = res.MaxLineLength
		}
		errCount += res.ErrorCount
	}
	return partitions, maxLineLength, errCount, nil
}
