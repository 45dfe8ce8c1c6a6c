// Package textmetrics provides the Unicode primitives the engine core
// consumes as pure functions: UTF-8 decoding, grapheme segmentation, and
// width lookup under a pinned policy. Segmentation and width are backed
// by github.com/rivo/uniseg (see repo DESIGN.md for why this is an
// ecosystem dependency rather than a hand-rolled table).
package textmetrics

import (
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// ReplacementScalar is substituted for invalid UTF-8 and for graphemes
// that are rejected as unsafe cell contents.
const ReplacementScalar = '�'

// Decoded is the result of decoding one UTF-8 scalar.
type Decoded struct {
	Scalar   rune
	Size     int
	Valid    bool
}

// DecodeUTF8 decodes the scalar at the start of b. Invalid sequences
// deterministically yield ReplacementScalar with Size 1.
func DecodeUTF8(b []byte) Decoded {
	if len(b) == 0 {
		return Decoded{Scalar: ReplacementScalar, Size: 0, Valid: false}
	}
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError && size <= 1 {
		return Decoded{Scalar: ReplacementScalar, Size: 1, Valid: false}
	}
	return Decoded{Scalar: r, Size: size, Valid: true}
}

// WidthPolicy selects how ambiguous/emoji scalars are measured.
type WidthPolicy int

const (
	PolicyEmojiNarrow WidthPolicy = iota
	PolicyEmojiWide
)

// GraphemeWidth returns the terminal display width of a single grapheme
// cluster's bytes, clamped to 0, 1, or 2, as measured by uniseg. The
// policy argument does not change the result: PolicyEmojiNarrow and
// PolicyEmojiWide both report emoji at uniseg's width (usually 2).
func GraphemeWidth(g string, policy WidthPolicy) int {
	if g == "" {
		return 1
	}
	w := uniseg.StringWidth(g)
	if policy == PolicyEmojiWide {
		// PolicyEmojiWide is uniseg's own behavior. No narrowing is
		// applied for PolicyEmojiNarrow either.
	}
	switch {
	case w <= 0:
		return 0
	case w == 1:
		return 1
	default:
		return 2
	}
}

// GraphemeIter yields (offset, size) grapheme segments over s such that
// every byte is covered exactly once.
type GraphemeIter struct {
	g *uniseg.Graphemes
}

// NewGraphemeIter creates an iterator over s.
func NewGraphemeIter(s []byte) *GraphemeIter {
	return &GraphemeIter{g: uniseg.NewGraphemes(string(s))}
}

// Next returns the next (offset, size) segment, or ok=false when
// exhausted. Iteration terminates in at most len(s)+1 steps.
func (it *GraphemeIter) Next() (off, size int, ok bool) {
	if !it.g.Next() {
		return 0, 0, false
	}
	start, end := it.g.Positions()
	return start, end - start, true
}

