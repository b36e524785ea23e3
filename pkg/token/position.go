package token

import "fmt"

// Position represents a location in the source code.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String returns the position as "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code. Both endpoints are
// inclusive: End is the position of the last character covered.
type Span struct {
	Start Position
	End   Position
}

// Contains returns true if the span contains the given offset.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset <= s.End.Offset
}

// IsValid returns true if both start and end positions are valid.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid()
}

// Locator returns the span as "startLine:startCol-endLine:endCol",
// the format carried on emitted ELM nodes.
func (s Span) Locator() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Union returns the smallest span covering both s and other.
func (s Span) Union(other Span) Span {
	out := s
	if !s.IsValid() {
		return other
	}
	if !other.IsValid() {
		return s
	}
	if other.Start.Offset < out.Start.Offset {
		out.Start = other.Start
	}
	if other.End.Offset > out.End.Offset {
		out.End = other.End
	}
	return out
}
