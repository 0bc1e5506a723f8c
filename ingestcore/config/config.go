// Package config loads the parameters of a bulk-load invocation (spec.md §6)
// from flags, environment variables, and an optional TOML file, in that
// priority order, following the teacher's cmd/root.go setAllConfig
// convention.
package config

import (
	"strings"

	"github.com/featurebasedb/bulkload/ingestcore/partitionby"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PartitionBy enumerates the partition-by units a table can be bucketed on.
// NONE is intentionally absent: spec.md §7 makes it a Configuration error.
type PartitionBy string

const (
	PartitionByHour  PartitionBy = "HOUR"
	PartitionByDay   PartitionBy = "DAY"
	PartitionByMonth PartitionBy = "MONTH"
	PartitionByYear  PartitionBy = "YEAR"
)

// Unit converts to the partitionby.Unit the coordinator uses for floor
// and directory-name computation. Callers must have already validated
// PartitionBy (see Validate) since an unrecognized value defaults to Day.
func (p PartitionBy) Unit() partitionby.Unit {
	u, ok := partitionby.ParseUnit(string(p))
	if !ok {
		return partitionby.Day
	}
	return u
}

// Atomicity governs how a row-level type-adaptation failure is handled
// during the load phase (spec.md §4.5, §7).
type Atomicity string

const (
	AtomicitySkipAll    Atomicity = "SKIP_ALL"
	AtomicitySkipRow    Atomicity = "SKIP_ROW"
	AtomicitySkipColumn Atomicity = "SKIP_COLUMN"
)

// Config holds every parameter of spec.md §6's single entry point, plus the
// operational knobs (worker count, chunk sizing, mmap window, sync mode)
// the original leaves as constructor arguments.
type Config struct {
	// Invocation parameters (spec.md §6).
	TableName       string      `mapstructure:"table"`
	InputFileName   string      `mapstructure:"input-file"`
	PartitionBy     PartitionBy `mapstructure:"partition-by"`
	ColumnDelimiter int         `mapstructure:"column-delimiter"` // -1 means auto-detect
	TimestampColumn string      `mapstructure:"timestamp-column"`
	TimestampFormat string      `mapstructure:"timestamp-format"`
	ForceHeader     bool        `mapstructure:"force-header"`
	Atomicity       Atomicity   `mapstructure:"atomicity"`

	// Filesystem roots (spec.md §6 "Filesystem layout").
	InputRoot string `mapstructure:"input-root"`
	WorkRoot  string `mapstructure:"work-root"`
	DBRoot    string `mapstructure:"db-root"`

	// Operational knobs.
	WorkerCount  int   `mapstructure:"workers"`
	MinChunkSize int64 `mapstructure:"min-chunk-size"`
	MmapWindow   int64 `mapstructure:"mmap-window"`
	SyncOnCommit bool  `mapstructure:"sync-on-commit"`
}

// DefaultMinChunkSize matches the teacher-adjacent original's
// DEFAULT_MIN_CHUNK_SIZE of 300MiB (FileIndexer.java).
const DefaultMinChunkSize = 300 * 1024 * 1024

// DefaultMmapWindow bounds a single mmap call during indexing to 64MiB so a
// worker's address space usage stays predictable regardless of file size.
const DefaultMmapWindow = 64 * 1024 * 1024

// Defaults returns a Config pre-populated with the package defaults; callers
// overlay flags/env/file on top of this via Bind.
func Defaults() Config {
	return Config{
		ColumnDelimiter: -1,
		Atomicity:       AtomicitySkipRow,
		WorkRoot:        "work",
		DBRoot:          "db",
		WorkerCount:     4,
		MinChunkSize:    DefaultMinChunkSize,
		MmapWindow:      DefaultMmapWindow,
		SyncOnCommit:    true,
	}
}

// RegisterFlags installs one pflag per Config field onto fs, seeded with
// the package defaults. Call Bind afterward to read the final values back.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("table", "", "name of the target table")
	fs.String("input-file", "", "path of the source file, relative to input-root")
	fs.String("partition-by", "", "partition unit: HOUR, DAY, MONTH, or YEAR")
	fs.Int("column-delimiter", d.ColumnDelimiter, "field delimiter byte; -1 auto-detects")
	fs.String("timestamp-column", "", "name of the timestamp column")
	fs.String("timestamp-format", "", "timestamp parse format; empty autodetects ISO-8601")
	fs.Bool("force-header", false, "treat the first line as a header even if it looks like data")
	fs.String("atomicity", string(d.Atomicity), "row failure policy: SKIP_ALL, SKIP_ROW, or SKIP_COLUMN")
	fs.String("input-root", "", "root directory containing source files")
	fs.String("work-root", d.WorkRoot, "root directory for the scratch work directory")
	fs.String("db-root", d.DBRoot, "root directory of the final table store")
	fs.Int("workers", d.WorkerCount, "number of parallel worker threads")
	fs.Int64("min-chunk-size", d.MinChunkSize, "minimum bytes per boundary-scan/indexing chunk")
	fs.Int64("mmap-window", d.MmapWindow, "maximum bytes mapped in one mmap call")
	fs.Bool("sync-on-commit", d.SyncOnCommit, "fsync staging tables on commit")
}

// envPrefix is the environment-variable prefix used when binding config,
// following the teacher's PILOSA/FEATUREBASE prefix convention.
const envPrefix = "BULKLOAD"

// Bind resolves a Config from flags, environment, and an optional file (if
// configFile is non-empty), in descending priority, following the teacher's
// setAllConfig: flags beat env beat file beat defaults.
func Bind(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, errors.Wrap(err, "binding flags")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading configuration file %q", configFile)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshaling configuration")
	}
	return cfg, nil
}

// Validate performs the Configuration-error checks of spec.md §7 that can
// be decided from the Config alone, before any phase-1 task is dispatched.
// Checks against an existing target table (column-count and partitionBy
// mismatch) are done by Coordinator.Validate from the metadata given to
// WithExisting; neither checks whether the target table already holds
// rows.
func (c Config) Validate() error {
	switch c.PartitionBy {
	case PartitionByHour, PartitionByDay, PartitionByMonth, PartitionByYear:
	default:
		return errors.Errorf("partitionBy must be one of HOUR, DAY, MONTH, YEAR, got %q", c.PartitionBy)
	}
	if c.TableName == "" {
		return errors.New("table name is required")
	}
	if c.InputFileName == "" {
		return errors.New("input file name is required")
	}
	if c.TimestampColumn == "" {
		return errors.New("timestamp column is required")
	}
	if c.WorkerCount < 1 {
		return errors.Errorf("workers must be >= 1, got %d", c.WorkerCount)
	}
	if c.MinChunkSize < 1 {
		return errors.Errorf("min-chunk-size must be >= 1, got %d", c.MinChunkSize)
	}
	switch c.Atomicity {
	case AtomicitySkipAll, AtomicitySkipRow, AtomicitySkipColumn:
	default:
		return errors.Errorf("atomicity must be one of SKIP_ALL, SKIP_ROW, SKIP_COLUMN, got %q", c.Atomicity)
	}
	return nil
}
