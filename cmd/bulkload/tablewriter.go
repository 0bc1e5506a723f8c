package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// manifestTableWriter is a minimal attacher.TableWriter: spec.md §6 treats
// the columnar table writer as an external collaborator outside this
// core's scope, so this binary's own implementation does nothing more
// than record which partitions have been attached, the way a real
// table writer would append to its own catalog.
type manifestTableWriter struct {
	dbRoot string
}

func newManifestTableWriter(dbRoot string) *manifestTableWriter {
	return &manifestTableWriter{dbRoot: dbRoot}
}

// AttachPartition appends one line to {dbRoot}/{tableName}/_attached.manifest
// recording that partitionName is now live. The Attacher has already
// renamed the partition's directory into place by the time this is
// called (spec.md §4.7).
func (m *manifestTableWriter) AttachPartition(tableName, partitionName string) error {
	path := filepath.Join(m.dbRoot, tableName, "_attached.manifest")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening manifest for table %s", tableName)
	}
	defer f.Close()
	if _, err := f.WriteString(partitionName + "\n"); err != nil {
		return errors.Wrapf(err, "appending partition %s to manifest", partitionName)
	}
	return nil
}
