// Package boundary implements the chunk boundary scan and reconciliation
// spec.md §4.1-§4.2 describe: splitting an arbitrarily-chunked source file
// into indexing chunks that never split a quoted record, using the
// even/odd quote-parity hypothesis trick instead of a full serial scan.
package boundary

// ChunkStat is the per-chunk statistic the scanner produces: quote count
// plus, for each of the two parity hypotheses, the newline count and the
// offset just after the first unquoted newline (spec.md §4.1).
type ChunkStat struct {
	Quotes int64

	NewlinesEven     int64
	FirstNewlineEven int64 // -1 if no unquoted newline under this hypothesis

	NewlinesOdd     int64
	FirstNewlineOdd int64 // -1 if no unquoted newline under this hypothesis
}

// Scan scans data — the bytes of [start, start+len(data)) in the source
// file — once, tracking both hypotheses simultaneously: "even" assumes
// data begins outside a quoted field, "odd" assumes inside. Offsets
// recorded in the result are absolute file offsets (start + local index).
//
// This only fails on I/O error, which happens at the caller (reading data
// via mmap); Scan itself, given bytes in hand, cannot fail.
func Scan(data []byte, start int64) ChunkStat {
	var stat ChunkStat
	stat.FirstNewlineEven = -1
	stat.FirstNewlineOdd = -1

	evenInQuotes := false
	oddInQuotes := true

	for i, c := range data {
		switch c {
		case '"':
			stat.Quotes++
			evenInQuotes = !evenInQuotes
			oddInQuotes = !oddInQuotes
		case '\n':
			if !evenInQuotes {
				stat.NewlinesEven++
				if stat.FirstNewlineEven == -1 {
					stat.FirstNewlineEven = start + int64(i) + 1
				}
			}
			if !oddInQuotes {
				stat.NewlinesOdd++
				if stat.FirstNewlineOdd == -1 {
					stat.FirstNewlineOdd = start + int64(i) + 1
				}
			}
		}
	}
	return stat
}
