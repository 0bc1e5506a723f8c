package lexer

// candidateDelimiters are tried in order of preference when auto-detecting
// (spec.md §6: "columnDelimiter ... −1 means auto-detect by scanning first
// N bytes"), mirroring the set the original importer's delimiter scanner
// considered.
var candidateDelimiters = []byte{',', '\t', '|', ';'}

// DetectDelimiter scans the first few lines of sample looking for the
// candidate that splits every sampled line into the same, >1, field count.
// It returns false if no candidate is consistent; the Coordinator turns
// that into a Configuration error.
func DetectDelimiter(sample []byte) (byte, bool) {
	lines := splitSampleLines(sample)
	if len(lines) == 0 {
		return 0, false
	}

	best := byte(0)
	bestFields := 1
	for _, d := range candidateDelimiters {
		fields, consistent := fieldCountIfConsistent(lines, d)
		if consistent && fields > bestFields {
			best = d
			bestFields = fields
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}

// splitSampleLines splits sample on unquoted newlines, discarding a
// possibly-partial final line (the sample is a prefix of the file, so its
// last line may be cut mid-record).
func splitSampleLines(sample []byte) [][]byte {
	var lines [][]byte
	inQuotes := false
	start := 0
	for i := 0; i < len(sample); i++ {
		switch sample[i] {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if !inQuotes {
				lines = append(lines, sample[start:i])
				start = i + 1
			}
		}
	}
	return lines
}

// fieldCountIfConsistent returns the field count every line agrees on when
// split by d, ignoring delimiter occurrences inside quotes.
func fieldCountIfConsistent(lines [][]byte, d byte) (int, bool) {
	count := -1
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		n := countUnquoted(line, d) + 1
		if count == -1 {
			count = n
		} else if n != count {
			return 0, false
		}
	}
	if count <= 1 {
		return 0, false
	}
	return count, true
}

func countUnquoted(line []byte, d byte) int {
	inQuotes := false
	n := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case d:
			if !inQuotes {
				n++
			}
		}
	}
	return n
}
