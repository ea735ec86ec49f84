package audio

// TimeSegmenter cuts a stream into fixed-duration consecutive pieces.
// It is the universal fallback and always succeeds: the produced spans
// exactly tile [0, duration) with no gaps and no overlaps.
type TimeSegmenter struct{}

// Segment tiles the interval [0, stream duration) into consecutive spans
// of targetDuration seconds; the final span absorbs the remainder and may
// be shorter.
func (TimeSegmenter) Segment(stream *Stream, targetDuration float64) []span {
	return tileInterval(0, stream.Duration(), targetDuration)
}

// tileInterval tiles [from, to) with consecutive spans of target seconds.
func tileInterval(from, to, target float64) []span {
	if to <= from {
		return nil
	}
	if target <= 0 {
		return []span{{start: from, end: to}}
	}
	var spans []span
	for start := from; start < to; {
		end := start + target
		if end > to {
			end = to
		}
		spans = append(spans, span{start: start, end: end})
		start = end
	}
	return spans
}
