// Package export renders a combined transcript as plain text, SRT, VTT,
// or JSON. The combined transcript is read-only input; SRT and VTT use
// the globally offset segment timestamps.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/soundscribe/soundscribe-api/internal/transcript"
)

// Format identifies an export rendering.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for unrecognized format names.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatTXT:
		return FormatTXT, nil
	case FormatSRT:
		return FormatSRT, nil
	case FormatVTT:
		return FormatVTT, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType returns the MIME type for downloads of this format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Text renders the transcript as plain text. With timestamps enabled,
// each segment is prefixed with its global time range.
func Text(t transcript.Combined, withTimestamps bool) string {
	if !withTimestamps || len(t.Segments) == 0 {
		return t.Text
	}
	var lines []string
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s - %s] %s",
			clockTimestamp(seg.Start), clockTimestamp(seg.End), text))
	}
	return strings.Join(lines, "\n")
}

// SRT renders the transcript in SubRip format.
func SRT(t transcript.Combined) string {
	if len(t.Segments) == 0 {
		return ""
	}
	var b strings.Builder
	index := 1
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			index, srtTimestamp(seg.Start), srtTimestamp(seg.End), text)
		index++
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// VTT renders the transcript in WebVTT format.
func VTT(t transcript.Combined) string {
	if len(t.Segments) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			vttTimestamp(seg.Start), vttTimestamp(seg.End), text)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// jsonDocument is the JSON export layout.
type jsonDocument struct {
	Text     string               `json:"text"`
	Language string               `json:"language,omitempty"`
	Duration float64              `json:"duration"`
	Segments []transcript.Segment `json:"segments"`
	Words    []transcript.Word    `json:"words"`
	Metadata jsonMetadata         `json:"metadata"`
}

type jsonMetadata struct {
	ChunkCount      int    `json:"chunk_count"`
	FailedChunks    int    `json:"failed_chunks"`
	ExportTimestamp string `json:"export_timestamp"`
}

// JSON renders the full transcript structure plus export metadata.
// The export timestamp is passed in so rendering stays deterministic.
func JSON(t transcript.Combined, exportedAt time.Time) ([]byte, error) {
	doc := jsonDocument{
		Text:     t.Text,
		Language: t.Language,
		Duration: t.TotalDuration,
		Segments: t.Segments,
		Words:    t.Words,
		Metadata: jsonMetadata{
			ChunkCount:      t.ChunkCount,
			FailedChunks:    t.FailedChunks,
			ExportTimestamp: exportedAt.Format(time.RFC3339),
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Render dispatches to the named format. TXT output includes timestamps
// when withTimestamps is set; other formats ignore the flag.
func Render(f Format, t transcript.Combined, withTimestamps bool, exportedAt time.Time) ([]byte, error) {
	switch f {
	case FormatTXT:
		return []byte(Text(t, withTimestamps)), nil
	case FormatSRT:
		return []byte(SRT(t)), nil
	case FormatVTT:
		return []byte(VTT(t)), nil
	case FormatJSON:
		return JSON(t, exportedAt)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-.]`)

// Filename builds a sanitized, timestamped download filename.
func Filename(base string, f Format, exportedAt time.Time) string {
	clean := unsafeFilenameChars.ReplaceAllString(base, "_")
	return fmt.Sprintf("%s_%s.%s", clean, exportedAt.Format("20060102_150405"), f)
}

// clockTimestamp formats seconds as HH:MM:SS.mmm.
func clockTimestamp(seconds float64) string {
	h, m, s, ms := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// srtTimestamp formats seconds as HH:MM:SS,mmm per the SubRip spec.
func srtTimestamp(seconds float64) string {
	h, m, s, ms := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// vttTimestamp formats seconds as HH:MM:SS.mmm per the WebVTT spec.
func vttTimestamp(seconds float64) string {
	return clockTimestamp(seconds)
}

func splitClock(seconds float64) (h, m, s, ms int) {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	ms = int((seconds - float64(total)) * 1000)
	return total / 3600, (total % 3600) / 60, total % 60, ms
}
