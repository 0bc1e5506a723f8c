// Package lexer implements the delimited-text lexer spec.md §6 lists as an
// external collaborator (of(delim), parse(buf, listener), restart(),
// parseLast()): splitting a byte slice into quoted/unquoted fields,
// honoring the doubled-quote escape convention of spec.md §3.
package lexer

// FieldFunc receives one fully-parsed record: its 0-based line number and
// its fields, already unquoted. The slice and its elements are only valid
// for the duration of the call; callers that need to keep field data must
// copy it.
type FieldFunc func(line int64, fields [][]byte)

// Lexer is stateful only in the sense of tracking the current line number
// across successive Parse calls over the same logical stream; it does not
// buffer partial records between calls (callers are expected to re-present
// any unconsumed suffix, per the Parse contract below).
type Lexer struct {
	delim byte
	line  int64
}

// Of returns a Lexer configured for the given single-byte field delimiter.
func Of(delim byte) *Lexer {
	return &Lexer{delim: delim}
}

// Restart resets the line counter to zero, e.g. when a worker begins a new
// phase-3 partition import over a freshly merged index (spec.md §4.5).
func (lx *Lexer) Restart() {
	lx.line = 0
}

// SetLine seeds the line counter, used by the indexer which knows the
// absolute starting line number of its chunk from the BoundaryReconciler.
func (lx *Lexer) SetLine(line int64) {
	lx.line = line
}

// Parse scans buf for complete records, invoking fn once per record with
// an ascending line number. buf must begin at a record boundary. Parse
// returns the number of bytes consumed (always exactly the bytes of
// complete records) and whether a final, unterminated partial record
// remains at buf[consumed:] — the caller decides whether to carry it into
// its next read window (the indexer) or treat it as EOF (ParseLast).
func (lx *Lexer) Parse(buf []byte, fn FieldFunc) (consumed int, incomplete bool) {
	return lx.ParseIndexed(buf, func(offset, length int, line int64, fields [][]byte) {
		fn(line, fields)
	})
}

// ParseIndexed is Parse, additionally reporting each record's starting byte
// offset within buf and its length in bytes (including its terminating
// delimiter/newline). The PartitionIndexer needs the offset to build
// IndexEntry's record_start_offset_in_file (spec.md §4.3) and the length to
// measure maxLineLength directly from each record rather than by diffing
// consecutive offsets (spec.md §4.3, §9); Parse itself doesn't need either
// and stays the narrower entry point used elsewhere.
func (lx *Lexer) ParseIndexed(buf []byte, fn func(offset, length int, line int64, fields [][]byte)) (consumed int, incomplete bool) {
	for {
		fields, n, terminated := scanRecord(buf[consumed:], lx.delim)
		if !terminated {
			return consumed, n > 0 || len(buf[consumed:]) > 0
		}
		if n == 0 {
			return consumed, false
		}
		fn(consumed, n, lx.line, fields)
		lx.line++
		consumed += n
		if consumed >= len(buf) {
			return consumed, false
		}
	}
}

// ParseOne parses exactly one record from the start of buf and invokes fn.
// This is what the loader uses: it reads a maxLineLength-sized slab per
// row via pread and relies on ParseOne to stop at the first unquoted
// newline inside it (spec.md §4.5, §9) — a record longer than
// maxLineLength (which phase 2 measured as the true maximum) is a broken
// invariant, not something ParseOne needs to handle.
func (lx *Lexer) ParseOne(buf []byte, fn FieldFunc) bool {
	fields, _, terminated := scanRecord(buf, lx.delim)
	if !terminated {
		return false
	}
	fn(lx.line, fields)
	return true
}

// ParseLast flushes a trailing record with no terminating newline — the
// last line of a file that doesn't end in \n. It is a no-op if buf is
// empty or holds only a trailing \r; other whitespace is parsed as a
// record.
func (lx *Lexer) ParseLast(buf []byte, fn FieldFunc) {
	trimmed := trimTrailingCR(buf)
	if len(trimmed) == 0 {
		return
	}
	fields := splitFields(trimmed, lx.delim)
	fn(lx.line, fields)
	lx.line++
}

// scanRecord scans a single record starting at buf[0]. It returns the
// record's fields (unquoted), the number of bytes consumed including the
// terminating newline, and whether a terminating unquoted newline was
// found at all.
func scanRecord(buf []byte, delim byte) (fields [][]byte, consumed int, terminated bool) {
	inQuotes := false
	fieldStart := 0
	i := 0
	n := len(buf)
	for i < n {
		c := buf[i]
		if inQuotes {
			if c == '"' {
				if i+1 < n && buf[i+1] == '"' {
					i += 2
					continue
				}
				inQuotes = false
				i++
				continue
			}
			i++
			continue
		}
		switch {
		case c == '"' && i == fieldStart:
			inQuotes = true
			i++
		case c == delim:
			fields = append(fields, unquote(buf[fieldStart:i]))
			i++
			fieldStart = i
		case c == '\n':
			fields = append(fields, unquote(trimTrailingCR(buf[fieldStart:i])))
			return fields, i + 1, true
		default:
			i++
		}
	}
	return nil, 0, false
}

// splitFields is scanRecord without the newline-termination requirement,
// used only by ParseLast for a record known to end at EOF.
func splitFields(buf []byte, delim byte) [][]byte {
	var fields [][]byte
	inQuotes := false
	fieldStart := 0
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(buf) && buf[i+1] == '"' {
					i++
					continue
				}
				inQuotes = false
			}
			continue
		}
		switch {
		case c == '"' && i == fieldStart:
			inQuotes = true
		case c == delim:
			fields = append(fields, unquote(buf[fieldStart:i]))
			fieldStart = i + 1
		}
	}
	fields = append(fields, unquote(buf[fieldStart:]))
	return fields
}

func trimTrailingCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}

// unquote strips a field's surrounding double quotes, if present, and
// collapses doubled "" escapes into a literal ". Fields that were never
// quoted are returned unmodified (no allocation).
func unquote(b []byte) []byte {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return b
	}
	inner := b[1 : len(b)-1]
	if indexByte(inner, '"') == -1 {
		return inner
	}
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '"' && i+1 < len(inner) && inner[i+1] == '"' {
			i++
		}
		out = append(out, inner[i])
	}
	return out
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
