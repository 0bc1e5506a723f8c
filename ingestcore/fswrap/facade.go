package fswrap

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Facade is the filesystem collaborator spec.md §6 requires: open/read/
// write/mmap/rename/mkdir/rmdir/directory-listing, kept narrow and
// synchronous since every caller already runs inside a worker task.
type Facade interface {
	OpenRO(path string) (ReadFile, error)
	OpenRW(path string) (WriteFile, error)
	Mkdir(path string) error
	MkdirAll(path string) error
	Rmdir(path string) error
	Rename(oldPath, newPath string) error
	Exists(path string) bool
	ListDir(path string) ([]string, error)
}

// ReadFile is a read-only handle supporting both mmap and pread, matching
// the two access patterns the core's phases use: sequential mmap windows
// during boundary scan/indexing, and random pread during the load phase.
type ReadFile interface {
	Pread(buf []byte, offset int64) (int, error)
	Mmap(offset int64, length int) ([]byte, error)
	Munmap([]byte) error
	Length() (int64, error)
	Close() error
}

// WriteFile is a read-write handle for append-only index shards and
// staging-table column files.
type WriteFile interface {
	Write(b []byte) (int, error)
	WriteAt(b []byte, offset int64) (int, error)
	Mmap(offset int64, length int) ([]byte, error)
	Munmap([]byte) error
	Length() (int64, error)
	Sync() error
	Close() error
}

// OSFacade implements Facade directly against the local filesystem.
type OSFacade struct{}

var _ Facade = OSFacade{}

func (OSFacade) OpenRO(path string) (ReadFile, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s read-only", path)
	}
	return &osFile{f: f, readOnly: true}, nil
}

func (OSFacade) OpenRW(path string) (WriteFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s read-write", path)
	}
	return &osFile{f: f}, nil
}

func (OSFacade) Mkdir(path string) error {
	if err := os.Mkdir(path, 0755); err != nil && !os.IsExist(err) {
		return errors.Wrapf(err, "mkdir %s", path)
	}
	return nil
}

func (OSFacade) MkdirAll(path string) error {
	return errors.Wrapf(os.MkdirAll(path, 0755), "mkdir -p %s", path)
}

func (OSFacade) Rmdir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "rmdir %s", path)
	}
	return nil
}

func (OSFacade) Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return errors.Wrapf(err, "rename %s -> %s", oldPath, newPath)
	}
	return nil
}

func (OSFacade) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListDir returns the base names of every regular file directly inside
// path, sorted, so callers get deterministic enumeration order across
// platforms (spec.md §4.5 enumerates a partition directory's index shards;
// order there doesn't matter for correctness but determinism helps tests).
func (OSFacade) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", path)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// osFile implements both ReadFile and WriteFile over *os.File.
type osFile struct {
	f        *os.File
	readOnly bool
}

func (o *osFile) Pread(buf []byte, offset int64) (int, error) {
	n, err := o.f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return 0, errors.Wrapf(err, "pread at offset %d", offset)
	}
	return n, nil
}

func (o *osFile) Write(b []byte) (int, error) {
	n, err := o.f.Write(b)
	return n, errors.Wrap(err, "write")
}

func (o *osFile) WriteAt(b []byte, offset int64) (int, error) {
	n, err := o.f.WriteAt(b, offset)
	return n, errors.Wrapf(err, "write at offset %d", offset)
}

func (o *osFile) Mmap(offset int64, length int) ([]byte, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if o.readOnly {
		prot = unix.PROT_READ
	}
	return Mmap(int(o.f.Fd()), offset, length, prot, unix.MAP_SHARED)
}

func (o *osFile) Munmap(b []byte) error {
	return Munmap(b)
}

func (o *osFile) Length() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat")
	}
	return fi.Size(), nil
}

func (o *osFile) Sync() error {
	return errors.Wrap(o.f.Sync(), "fsync")
}

func (o *osFile) Close() error {
	return errors.Wrap(o.f.Close(), "close")
}
