// Package attacher implements the Attacher (spec.md §4.7): move each
// worker's partition directories from its staging table into the final
// table's root and ask the external table writer to attach them. Rename
// and attach failures are logged and do not abort the rest of the run
// (spec.md §9 "Open Question": partial-attach rollback is left
// unimplemented, per spec.md's explicit instruction to preserve
// log-and-continue).
package attacher

import (
	"path/filepath"
	"sync"

	"github.com/featurebasedb/bulkload/ingestcore/fswrap"
	"github.com/featurebasedb/bulkload/ingestcore/logger"
	"github.com/featurebasedb/bulkload/ingestcore/table"
	"golang.org/x/sync/errgroup"
)

// TableWriter is the narrow slice of spec.md §6's external table-writer
// collaborator the Attacher needs: requesting that a partition already
// moved onto disk be attached to the live table.
type TableWriter interface {
	AttachPartition(tableName, partitionName string) error
}

// Job is one partition to move and attach.
type Job struct {
	WorkerID      int
	StagingDir    string // workRoot/{table}/{table}__{workerID}/{partitionName}
	PartitionName string
}

// Report is the aggregate outcome of one Attach run: which partitions
// failed to rename or attach, resolving spec.md §9's open question by
// surfacing failures to the caller instead of silently swallowing them,
// while still never rolling back a partial attach.
type Report struct {
	mu       sync.Mutex
	Attached []string
	Failed   map[string]error
}

func newReport() *Report {
	return &Report{Failed: make(map[string]error)}
}

func (r *Report) ok(partition string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Attached = append(r.Attached, partition)
}

func (r *Report) fail(partition string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed[partition] = err
}

// Attach moves and attaches every partition across every writer's staging
// table (spec.md §4.7), bounding concurrent renames with errgroup.SetLimit
// the way the teacher bounds concurrent phase work.
func Attach(facade fswrap.Facade, writers []*table.Writer, tableName, dbRoot string, tw TableWriter, concurrency int, log logger.Logger) *Report {
	var jobs []Job
	for _, w := range writers {
		for _, partitionName := range w.Partitions() {
			jobs = append(jobs, Job{
				WorkerID:      w.WorkerID(),
				StagingDir:    w.PartitionDir(partitionName),
				PartitionName: partitionName,
			})
		}
	}

	report := newReport()
	finalTableRoot := filepath.Join(dbRoot, tableName)
	if err := facade.MkdirAll(finalTableRoot); err != nil {
		log.Errorf("attach: creating final table root %s: %v", finalTableRoot, err)
	}

	g := new(errgroup.Group)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			attachOne(facade, tableName, finalTableRoot, job, tw, report, log)
			return nil
		})
	}
	_ = g.Wait() // attachOne never returns an error to the group; failures live in report

	return report
}

func attachOne(facade fswrap.Facade, tableName, finalTableRoot string, job Job, tw TableWriter, report *Report, log logger.Logger) {
	finalDir := filepath.Join(finalTableRoot, job.PartitionName)
	if err := facade.Rename(job.StagingDir, finalDir); err != nil {
		log.Errorf("attach: renaming partition %s from worker %d: %v", job.PartitionName, job.WorkerID, err)
		report.fail(job.PartitionName, err)
		return
	}
	if err := tw.AttachPartition(tableName, job.PartitionName); err != nil {
		log.Errorf("attach: attaching partition %s: %v", job.PartitionName, err)
		report.fail(job.PartitionName, err)
		return
	}
	report.ok(job.PartitionName)
}
