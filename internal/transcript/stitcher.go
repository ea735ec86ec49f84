package transcript

import (
	"sort"
	"strings"
)

// maxOverlapWords bounds the suffix/prefix comparison during text
// deduplication.
const maxOverlapWords = 10

// Combine merges ordered per-chunk results into a single transcript.
// Only successful results contribute content; failures count toward
// FailedChunks. The merge is deterministic given the same input order.
//
// Text deduplication is a best-effort heuristic for the overlap padding
// injected between chunks: the longest run of up to ten whitespace
// tokens shared between the combined tail and the new chunk's head is
// removed once. It is not validated against the audio-level overlap, so
// residual duplication near non-speech padding is possible; downstream
// format compatibility depends on preserving this exact policy.
func Combine(results []ChunkResult) Combined {
	if len(results) == 0 {
		return Combined{Segments: []Segment{}, Words: []Word{}}
	}

	ordered := make([]ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Meta.Index < ordered[j].Meta.Index
	})

	var succeeded []ChunkResult
	for _, r := range ordered {
		if r.Success {
			succeeded = append(succeeded, r)
		}
	}

	if len(succeeded) == 0 {
		return Combined{
			Segments:     []Segment{},
			Words:        []Word{},
			ChunkCount:   len(results),
			FailedChunks: len(results),
			Error:        "no successful transcriptions",
		}
	}

	combined := Combined{
		Text:         mergeText(succeeded),
		Segments:     mergeSegments(succeeded),
		Words:        mergeWords(succeeded),
		Language:     succeeded[0].Language,
		ChunkCount:   len(results),
		FailedChunks: len(results) - len(succeeded),
		Success:      true,
	}
	for _, r := range succeeded {
		// Chunks overlap, so the total is the furthest end offset,
		// never the sum of durations.
		if r.Meta.End > combined.TotalDuration {
			combined.TotalDuration = r.Meta.End
		}
	}
	return combined
}

// mergeText concatenates chunk texts in index order, stripping the
// longest matched overlap from the head of each subsequent chunk.
func mergeText(results []ChunkResult) string {
	var parts []string
	for _, r := range results {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if len(parts) == 0 {
			parts = append(parts, text)
			continue
		}
		stripped := stripOverlap(strings.Join(parts, " "), text)
		if stripped == "" {
			// The whole chunk was overlap padding.
			continue
		}
		parts = append(parts, stripped)
	}
	return strings.Join(parts, " ")
}

// stripOverlap removes from current the longest head run (up to
// maxOverlapWords, checked longest first) that exactly equals the tail of
// combined. Tokens are whitespace-split and compared case-sensitively.
// No match leaves current unmodified.
func stripOverlap(combined, current string) string {
	prevWords := strings.Fields(combined)
	currWords := strings.Fields(current)

	longest := maxOverlapWords
	if len(prevWords) < longest {
		longest = len(prevWords)
	}
	if len(currWords) < longest {
		longest = len(currWords)
	}

	for n := longest; n >= 1; n-- {
		if equalRuns(prevWords[len(prevWords)-n:], currWords[:n]) {
			return strings.Join(currWords[n:], " ")
		}
	}
	return current
}

func equalRuns(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mergeSegments shifts each chunk's segments by the chunk's start offset
// and appends them in chunk order. No deduplication is applied, so
// near-duplicate segments can appear at boundaries; only the flattened
// text is deduplicated.
func mergeSegments(results []ChunkResult) []Segment {
	combined := make([]Segment, 0)
	for _, r := range results {
		offset := r.Meta.Start
		for _, seg := range r.Segments {
			seg.Start += offset
			seg.End += offset
			combined = append(combined, seg)
		}
	}
	return combined
}

// mergeWords shifts each chunk's words by the chunk's start offset and
// appends them in chunk order.
func mergeWords(results []ChunkResult) []Word {
	combined := make([]Word, 0)
	for _, r := range results {
		offset := r.Meta.Start
		for _, w := range r.Words {
			w.Start += offset
			w.End += offset
			combined = append(combined, w)
		}
	}
	return combined
}
