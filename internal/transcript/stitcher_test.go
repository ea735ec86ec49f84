package transcript

import (
	"reflect"
	"testing"

	"github.com/soundscribe/soundscribe-api/internal/audio"
)

func chunkMeta(index int, start, end float64) audio.Metadata {
	return audio.Metadata{
		Index:    index,
		Start:    start,
		End:      end,
		Duration: end - start,
		Method:   audio.SplitTime,
	}
}

func TestCombine_Empty(t *testing.T) {
	got := Combine(nil)

	if got.Success {
		t.Error("expected Success=false for empty input")
	}
	if got.ChunkCount != 0 || got.FailedChunks != 0 {
		t.Errorf("expected zero counts, got chunks=%d failed=%d", got.ChunkCount, got.FailedChunks)
	}
	if got.Segments == nil || got.Words == nil {
		t.Error("expected empty slices, not nil")
	}
	if len(got.Segments) != 0 || len(got.Words) != 0 {
		t.Errorf("expected no segments or words, got %d/%d", len(got.Segments), len(got.Words))
	}
}

func TestCombine_AllFailed(t *testing.T) {
	results := []ChunkResult{
		{Success: false, Error: "rate limited", Meta: chunkMeta(0, 0, 30)},
		{Success: false, Error: "rate limited", Meta: chunkMeta(1, 30, 60)},
	}

	got := Combine(results)

	if got.Success {
		t.Error("expected Success=false when no chunk succeeded")
	}
	if got.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", got.ChunkCount)
	}
	if got.FailedChunks != 2 {
		t.Errorf("FailedChunks = %d, want 2", got.FailedChunks)
	}
	if got.Error == "" {
		t.Error("expected an error message")
	}
	if got.Text != "" {
		t.Errorf("expected empty text, got %q", got.Text)
	}
}

func TestCombine_PartialFailure(t *testing.T) {
	results := []ChunkResult{
		{Success: true, Text: "first part", Language: "en", Meta: chunkMeta(0, 0, 30)},
		{Success: false, Error: "timeout", Meta: chunkMeta(1, 27, 57)},
		{Success: true, Text: "third part", Language: "en", Meta: chunkMeta(2, 54, 84)},
	}

	got := Combine(results)

	if !got.Success {
		t.Fatal("expected Success=true with partial failures")
	}
	if got.ChunkCount != 3 {
		t.Errorf("ChunkCount = %d, want 3", got.ChunkCount)
	}
	if got.FailedChunks != 1 {
		t.Errorf("FailedChunks = %d, want 1", got.FailedChunks)
	}
	if got.Text != "first part third part" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.TotalDuration != 84 {
		t.Errorf("TotalDuration = %g, want 84", got.TotalDuration)
	}
}

func TestCombine_OutOfOrderInput(t *testing.T) {
	results := []ChunkResult{
		{Success: true, Text: "second", Meta: chunkMeta(1, 30, 60)},
		{Success: true, Text: "first", Meta: chunkMeta(0, 0, 30)},
	}

	got := Combine(results)

	if got.Text != "first second" {
		t.Errorf("Text = %q, want chunks merged in index order", got.Text)
	}
}

func TestCombine_OverlapDeduplication(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{
			name:  "three word overlap",
			texts: []string{"the quick brown fox jumps", "brown fox jumps over the lazy dog"},
			want:  "the quick brown fox jumps over the lazy dog",
		},
		{
			name:  "single word overlap",
			texts: []string{"hello world", "world again"},
			want:  "hello world again",
		},
		{
			name:  "no overlap",
			texts: []string{"first chunk", "second chunk"},
			want:  "first chunk second chunk",
		},
		{
			name:  "case sensitive no match",
			texts: []string{"Hello World", "world again"},
			want:  "Hello World world again",
		},
		{
			name:  "entire chunk is overlap",
			texts: []string{"one two three", "two three"},
			want:  "one two three",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]ChunkResult, len(tt.texts))
			for i, text := range tt.texts {
				start := float64(i * 27)
				results[i] = ChunkResult{
					Success: true,
					Text:    text,
					Meta:    chunkMeta(i, start, start+30),
				}
			}
			got := Combine(results)
			if got.Text != tt.want {
				t.Errorf("Text = %q, want %q", got.Text, tt.want)
			}
		})
	}
}

func TestCombine_OverlapBounded(t *testing.T) {
	t.Run("ten word run stripped", func(t *testing.T) {
		// The last ten words of the first chunk match the first ten of
		// the second, the widest window the matcher considers.
		results := []ChunkResult{
			{Success: true, Text: "x y a b c d e f g h i j", Meta: chunkMeta(0, 0, 30)},
			{Success: true, Text: "a b c d e f g h i j k l", Meta: chunkMeta(1, 27, 57)},
		}

		got := Combine(results)

		want := "x y a b c d e f g h i j k l"
		if got.Text != want {
			t.Errorf("Text = %q, want %q", got.Text, want)
		}
	})

	t.Run("identical chunks concatenated", func(t *testing.T) {
		// No tail of a 12-word text equals any of its own heads (tails
		// end in "l", heads start with "a"), so nothing is stripped.
		text := "a b c d e f g h i j k l"
		results := []ChunkResult{
			{Success: true, Text: text, Meta: chunkMeta(0, 0, 30)},
			{Success: true, Text: text, Meta: chunkMeta(1, 27, 57)},
		}

		got := Combine(results)

		want := text + " " + text
		if got.Text != want {
			t.Errorf("Text = %q, want %q", got.Text, want)
		}
	})
}

func TestCombine_SegmentAndWordOffsets(t *testing.T) {
	results := []ChunkResult{
		{
			Success: true,
			Text:    "alpha",
			Segments: []Segment{
				{ID: 0, Start: 0, End: 5, Text: "alpha"},
			},
			Words: []Word{
				{Start: 0.5, End: 1.0, Word: "alpha"},
			},
			Meta: chunkMeta(0, 0, 30),
		},
		{
			Success: true,
			Text:    "beta",
			Segments: []Segment{
				{ID: 0, Start: 0, End: 5, Text: "beta"},
			},
			Words: []Word{
				{Start: 0.5, End: 1.0, Word: "beta"},
			},
			Meta: chunkMeta(1, 27, 57),
		},
		{
			Success: true,
			Text:    "gamma",
			Segments: []Segment{
				{ID: 0, Start: 0, End: 5, Text: "gamma"},
			},
			Meta: chunkMeta(2, 54, 84),
		},
	}

	got := Combine(results)

	wantStarts := []float64{0, 27, 54}
	wantEnds := []float64{5, 32, 59}
	if len(got.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(got.Segments))
	}
	for i, seg := range got.Segments {
		if seg.Start != wantStarts[i] || seg.End != wantEnds[i] {
			t.Errorf("segment %d span = [%g, %g], want [%g, %g]",
				i, seg.Start, seg.End, wantStarts[i], wantEnds[i])
		}
	}

	if len(got.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(got.Words))
	}
	if got.Words[1].Start != 27.5 || got.Words[1].End != 28.0 {
		t.Errorf("word 1 span = [%g, %g], want [27.5, 28]", got.Words[1].Start, got.Words[1].End)
	}
}

func TestCombine_LanguageFromFirstSuccess(t *testing.T) {
	results := []ChunkResult{
		{Success: false, Error: "timeout", Meta: chunkMeta(0, 0, 30)},
		{Success: true, Text: "hola", Language: "es", Meta: chunkMeta(1, 27, 57)},
		{Success: true, Text: "mundo", Language: "en", Meta: chunkMeta(2, 54, 84)},
	}

	got := Combine(results)

	if got.Language != "es" {
		t.Errorf("Language = %q, want %q", got.Language, "es")
	}
}

func TestCombine_BlankTextSkipped(t *testing.T) {
	results := []ChunkResult{
		{Success: true, Text: "  ", Meta: chunkMeta(0, 0, 30)},
		{Success: true, Text: "spoken words", Meta: chunkMeta(1, 27, 57)},
	}

	got := Combine(results)

	if got.Text != "spoken words" {
		t.Errorf("Text = %q, want %q", got.Text, "spoken words")
	}
}

func TestCombine_Deterministic(t *testing.T) {
	results := []ChunkResult{
		{Success: true, Text: "one two three", Words: []Word{{Start: 0, End: 1, Word: "one"}}, Meta: chunkMeta(0, 0, 30)},
		{Success: true, Text: "three four five", Meta: chunkMeta(1, 27, 57)},
		{Success: false, Error: "timeout", Meta: chunkMeta(2, 54, 84)},
	}

	first := Combine(results)
	second := Combine(results)

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output for identical input")
	}
}
