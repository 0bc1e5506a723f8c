// Package fswrap wraps the filesystem syscalls spec.md §6 names as the
// core's "Filesystem facade" collaborator (openRO, openRW, mmap, munmap,
// pread, write, length, mkdir, rmdir, rename, findFirst/Next/Close), and
// imposes a process-wide cap on live mmaps the way the teacher's syswrap
// package does.
package fswrap

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var mapCount uint64

// ErrMaxMapCountReached is returned by Mmap once MaxMapCount concurrent
// mappings are already live.
var ErrMaxMapCountReached = errors.New("maximum map count reached")

// MaxMapCount defaults to slightly less than Linux's typical vm.max_map_count
// default (65530), leaving headroom for the Go runtime's own mappings.
var MaxMapCount uint64 = 60000

// Mmap increments the global map count, then calls unix.Mmap. On any error
// (including exceeding MaxMapCount) the count is left unchanged and the
// error returned.
func Mmap(fd int, offset int64, length int, prot int, flags int) ([]byte, error) {
	if newCount := atomic.AddUint64(&mapCount, 1); newCount > MaxMapCount {
		atomic.AddUint64(&mapCount, ^uint64(0))
		return nil, ErrMaxMapCountReached
	}
	data, err := unix.Mmap(fd, offset, length, prot, flags)
	if err != nil {
		atomic.AddUint64(&mapCount, ^uint64(0))
		return nil, errors.Wrap(err, "mmap")
	}
	return data, nil
}

// Munmap calls unix.Munmap and decrements the global map count on success.
func Munmap(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return errors.Wrap(err, "munmap")
	}
	atomic.AddUint64(&mapCount, ^uint64(0))
	return nil
}

// LiveMapCount reports the number of currently-live mappings made through
// this package; exported for tests that assert mappings are released
// between phases (spec.md §5 "Memory").
func LiveMapCount() uint64 {
	return atomic.LoadUint64(&mapCount)
}
