package boundary

// Boundary is one entry of the reconciled `(offset, starting_line)`
// sequence (spec.md §4.2); indexing chunks are formed from consecutive
// pairs.
type Boundary struct {
	Offset       int64
	StartingLine int64
}

// Reconcile performs the serial pass of spec.md §4.2 across the N
// ChunkStats produced by Scan for chunks 0..N-1, plus the file length,
// resolving each chunk's quote-parity ambiguity from the running quote
// count seen so far and emitting the boundary sequence indexing chunks
// are built from.
func Reconcile(stats []ChunkStat, fileLen int64) []Boundary {
	if len(stats) == 0 {
		return []Boundary{{Offset: 0}, {Offset: fileLen}}
	}

	boundaries := []Boundary{{Offset: 0, StartingLine: 0}}
	quotesTotal := stats[0].Quotes
	linesTotal := stats[0].NewlinesEven + 1
	lastOffset := int64(0)

	for i := 1; i < len(stats); i++ {
		var offset, newlines int64
		if quotesTotal%2 != 0 {
			offset, newlines = stats[i].FirstNewlineOdd, stats[i].NewlinesOdd
		} else {
			offset, newlines = stats[i].FirstNewlineEven, stats[i].NewlinesEven
		}
		quotesTotal += stats[i].Quotes

		if offset == -1 {
			// Huge quoted field or single over-long line spanning this
			// entire chunk: merge it into the previous chunk by simply
			// not emitting a boundary here.
			continue
		}
		boundaries = append(boundaries, Boundary{Offset: offset, StartingLine: linesTotal})
		linesTotal += newlines
		lastOffset = offset
	}

	if lastOffset < fileLen {
		boundaries = append(boundaries, Boundary{Offset: fileLen})
	}
	return boundaries
}

// IndexingChunk is one `(lo, hi, startingLine, chunkID)` unit of work for
// the PartitionIndexer (spec.md §4.3).
type IndexingChunk struct {
	Lo           int64
	Hi           int64
	StartingLine int64
	ChunkID      int
}

// Chunks turns a reconciled boundary sequence into consecutive-pair
// indexing chunks.
func Chunks(boundaries []Boundary) []IndexingChunk {
	if len(boundaries) < 2 {
		return nil
	}
	chunks := make([]IndexingChunk, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		chunks = append(chunks, IndexingChunk{
			Lo:           boundaries[i].Offset,
			Hi:           boundaries[i+1].Offset,
			StartingLine: boundaries[i].StartingLine,
			ChunkID:      i,
		})
	}
	return chunks
}
