// Package schemadetect implements the first-N-lines column-type heuristic
// spec.md §1 places out of scope for *correctness* ("schema inference
// correctness beyond first-N-lines heuristics" is an explicit Non-goal)
// but still requires something concrete to drive the indexing and load
// phases: every field needs a ColumnType and an Adapter before phase 2 can
// run. This is the minimal heuristic implementation of the "delimited-text
// lexer and type-detector" external collaborator spec.md §6 names.
package schemadetect

import (
	"strconv"

	"github.com/featurebasedb/bulkload/ingestcore/errcode"
	"github.com/featurebasedb/bulkload/ingestcore/lexer"
	"github.com/featurebasedb/bulkload/ingestcore/symbol"
	"github.com/featurebasedb/bulkload/ingestcore/table"
)

// sampleLines is how many data rows the heuristic inspects per column.
const sampleLines = 20

// Result is what Detect produces: the table schema, one Adapter per
// column in the same order, and the index of the designated timestamp
// column.
type Result struct {
	Schema          table.Schema
	Adapters        []lexer.Adapter
	TimestampColumn int
}

// Detect splits sample (a prefix of the source file) into lines, decides
// whether the first line is a header, and classifies every column by
// trying, in order, the timestamp column name match, int64, float64,
// bool, a low-cardinality symbol heuristic, then falling back to string.
func Detect(sample []byte, delim byte, forceHeader bool, timestampColumn, timestampFormat string) (Result, error) {
	lines := splitLines(sample, delim)
	if len(lines) == 0 {
		return Result{}, errcode.New(errcode.Configuration, "input file is empty")
	}

	hasHeader := forceHeader || looksLikeHeader(lines[0], lines, delim)
	var names []string
	dataLines := lines
	if hasHeader {
		names = decodeHeader(lines[0], delim)
		dataLines = lines[1:]
	} else {
		names = make([]string, len(splitRawFields(lines[0], delim)))
		for i := range names {
			names[i] = "col_" + strconv.Itoa(i)
		}
	}
	if len(dataLines) > sampleLines {
		dataLines = dataLines[:sampleLines]
	}

	tsColIdx := -1
	for i, n := range names {
		if n == timestampColumn {
			tsColIdx = i
			break
		}
	}
	if tsColIdx == -1 {
		return Result{}, errcode.Newf(errcode.Configuration, "timestamp column %q not found in input header", timestampColumn)
	}

	cols := make([]table.Column, len(names))
	adapters := make([]lexer.Adapter, len(names))
	for i, name := range names {
		samples := columnSamples(dataLines, i, delim)
		var ctype lexer.ColumnType
		var adapter lexer.Adapter
		switch {
		case i == tsColIdx:
			ctype = lexer.ColumnTimestamp
			adapter = lexer.NewTimestampAdapter(timestampFormat)
		case allParse(samples, isInt):
			ctype, adapter = lexer.ColumnInt64, lexer.Int64Adapter()
		case allParse(samples, isFloat):
			ctype, adapter = lexer.ColumnFloat64, lexer.Float64Adapter()
		case allParse(samples, isBool):
			ctype, adapter = lexer.ColumnBool, lexer.BoolAdapter()
		case isLowCardinality(samples):
			ctype, adapter = lexer.ColumnSymbol, lexer.SymbolAdapter()
		default:
			ctype, adapter = lexer.ColumnString, lexer.StringAdapter()
		}
		col := table.Column{Name: name, Type: ctype}
		if ctype == lexer.ColumnSymbol {
			col.SymbolHint = symbol.EstimateCardinality(samples)
		}
		cols[i] = col
		adapters[i] = adapter
	}

	return Result{
		Schema:          table.Schema{Columns: cols},
		Adapters:        adapters,
		TimestampColumn: tsColIdx,
	}, nil
}

func splitLines(sample []byte, delim byte) [][]byte {
	var lines [][]byte
	inQuotes := false
	start := 0
	for i := 0; i < len(sample); i++ {
		switch sample[i] {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if !inQuotes {
				line := sample[start:i]
				if len(line) > 0 && line[len(line)-1] == '\r' {
					line = line[:len(line)-1]
				}
				lines = append(lines, line)
				start = i + 1
			}
		}
	}
	if start < len(sample) {
		lines = append(lines, sample[start:])
	}
	return lines
}

// looksLikeHeader guesses whether the first line is a header by checking
// that none of its fields parses as a number and that the second line has
// the same field count; the second line's values are not inspected — a
// coarse first-N-lines heuristic, not a correctness guarantee (spec.md §1
// Non-goals).
func looksLikeHeader(first []byte, lines [][]byte, delim byte) bool {
	if len(lines) < 2 {
		return false
	}
	firstFields := splitRawFields(first, delim)
	secondFields := splitRawFields(lines[1], delim)
	if len(firstFields) != len(secondFields) {
		return false
	}
	for i := range firstFields {
		if _, err := strconv.ParseFloat(string(firstFields[i]), 64); err == nil {
			return false
		}
	}
	return true
}

func decodeHeader(line []byte, delim byte) []string {
	fields := splitRawFields(line, delim)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return names
}

func splitRawFields(line []byte, delim byte) [][]byte {
	var fields [][]byte
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] == delim {
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	fields = append(fields, line[start:])
	return fields
}

func columnSamples(lines [][]byte, col int, delim byte) []string {
	var out []string
	for _, line := range lines {
		fields := splitRawFields(line, delim)
		if col < len(fields) {
			out = append(out, string(fields[col]))
		}
	}
	return out
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isBool(s string) bool {
	_, err := strconv.ParseBool(s)
	return err == nil
}

func allParse(samples []string, pred func(string) bool) bool {
	if len(samples) == 0 {
		return false
	}
	for _, s := range samples {
		if s == "" {
			continue
		}
		if !pred(s) {
			return false
		}
	}
	return true
}

// isLowCardinality treats a column as a symbol candidate when it repeats
// values heavily across the sample — the same rough signal QuestDB's
// importer uses to default string columns with few distinct values to a
// symbol type.
func isLowCardinality(samples []string) bool {
	if len(samples) < 4 {
		return false
	}
	distinct := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		distinct[s] = struct{}{}
	}
	return len(distinct) <= len(samples)/2
}
