// Package segment splits LaTeX source into alternating text and math
// segments for the compiler-free inline preview path.
package segment

import "strings"

// Kind classifies a segment as plain text or math.
type Kind string

const (
	KindText Kind = "text"
	KindMath Kind = "math"
)

// Segment is a contiguous span of source text. Concatenating the Raw
// fields of all segments in order reconstructs the input exactly.
type Segment struct {
	Kind        Kind   `json:"kind"`
	Raw         string `json:"raw"`
	DisplayMode bool   `json:"display_mode"`
}

// Body returns the segment content with math delimiters stripped.
// For text segments it returns Raw unchanged.
func (s Segment) Body() string {
	if s.Kind != KindMath {
		return s.Raw
	}
	switch {
	case strings.HasPrefix(s.Raw, "$$") && strings.HasSuffix(s.Raw, "$$") && len(s.Raw) >= 4:
		return s.Raw[2 : len(s.Raw)-2]
	case strings.HasPrefix(s.Raw, `\[`) && strings.HasSuffix(s.Raw, `\]`) && len(s.Raw) >= 4:
		return s.Raw[2 : len(s.Raw)-2]
	case strings.HasPrefix(s.Raw, `\(`) && strings.HasSuffix(s.Raw, `\)`) && len(s.Raw) >= 4:
		return s.Raw[2 : len(s.Raw)-2]
	case strings.HasPrefix(s.Raw, "$") && strings.HasSuffix(s.Raw, "$") && len(s.Raw) >= 2:
		return s.Raw[1 : len(s.Raw)-1]
	}
	return s.Raw
}

// delimiter pairs in priority order. $$ must be tried before $ so a
// display block is never read as two empty inline spans.
var delims = []struct {
	open, close string
	display     bool
	singleLine  bool
}{
	{"$$", "$$", true, false},
	{`\[`, `\]`, true, false},
	{`\(`, `\)`, false, false},
	{"$", "$", false, true},
}

// Split partitions src into an ordered sequence of text and math
// segments. Every byte of the input belongs to exactly one segment.
// Unterminated delimiters (no closing match before end of input, or
// before a line break for single-$) fall back to plain text.
func Split(src string) []Segment {
	var out []Segment
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			out = append(out, Segment{Kind: KindText, Raw: text.String()})
			text.Reset()
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]

		// Escapes: a backslash consumes the next byte unless it opens a
		// math delimiter, so \$ and \\ never start a segment.
		if c == '\\' && i+1 < len(src) {
			next := src[i+1]
			if next != '[' && next != '(' {
				text.WriteString(src[i : i+2])
				i += 2
				continue
			}
		}

		matched := false
		if c == '$' || c == '\\' {
			for _, d := range delims {
				if !strings.HasPrefix(src[i:], d.open) {
					continue
				}
				end := findClose(src, i+len(d.open), d.close, d.singleLine)
				if end < 0 {
					// Unterminated: the opener is plain text; keep
					// scanning after it so later delimiters still match.
					text.WriteString(d.open)
					i += len(d.open)
					matched = true
					break
				}
				flushText()
				raw := src[i : end+len(d.close)]
				out = append(out, Segment{Kind: KindMath, Raw: raw, DisplayMode: d.display})
				i = end + len(d.close)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		text.WriteByte(c)
		i++
	}

	flushText()
	return out
}

// findClose returns the index of the closing delimiter at or after
// from, or -1 when none exists. Escaped closers are skipped. When
// singleLine is set a line break before the closer aborts the search,
// which keeps a stray $ from swallowing whole paragraphs.
func findClose(src string, from int, close string, singleLine bool) int {
	for j := from; j+len(close) <= len(src); j++ {
		if src[j:j+len(close)] == close {
			return j
		}
		if singleLine && src[j] == '\n' {
			return -1
		}
		// An escape consumes the next byte, but never a line break: the
		// newline must stay visible to the singleLine check above.
		if src[j] == '\\' && j+1 < len(src) && src[j+1] != '\n' {
			j++
		}
	}
	return -1
}
