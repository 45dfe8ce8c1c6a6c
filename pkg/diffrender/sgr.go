package diffrender

import (
	"strconv"

	"github.com/vtengine/core/internal/bytewriter"
	"github.com/vtengine/core/pkg/cellbuf"
)

// maskAttrs clears any attribute bit caps doesn't support before
// comparison or emission (spec §4.8 "Cell attributes are masked by
// caps.sgr_attrs_supported before emission").
func maskAttrs(attrs cellbuf.AttrMask, caps Caps) cellbuf.AttrMask {
	return attrs & caps.SgrAttrsSupported
}

// effectiveStyle returns style with unsupported attributes masked off,
// the form all style comparisons and emissions use.
func effectiveStyle(style cellbuf.Style, caps Caps) cellbuf.Style {
	style.Attrs = maskAttrs(style.Attrs, caps)
	return style
}

var attrCodes = []struct {
	bit  cellbuf.AttrMask
	on   int
	off  int
}{
	{cellbuf.AttrBold, 1, 22},
	{cellbuf.AttrFaint, 2, 22},
	{cellbuf.AttrItalic, 3, 23},
	{cellbuf.AttrUnderline, 4, 24},
	{cellbuf.AttrDoubleUnderline, 21, 24},
	{cellbuf.AttrBlink, 5, 25},
	{cellbuf.AttrReverse, 7, 27},
	{cellbuf.AttrConceal, 8, 28},
	{cellbuf.AttrStrike, 9, 29},
}

// emitStyleChange appends whatever SGR sequence is needed to move the
// tracked style `from` to `to`. It implements spec §4.8's delta-then-
// fallback policy: if the change only adds attributes/colors, emit a
// minimal delta SGR; if any attribute is cleared, emit an absolute
// reset-then-reapply ("0;...m") for portability, since not every
// terminal supports every individual "turn off" SGR code.
func emitStyleChange(b *bytewriter.Builder, from, to cellbuf.Style, caps Caps) bool {
	to = effectiveStyle(to, caps)
	from = effectiveStyle(from, caps)
	if from == to {
		return true
	}

	clearing := false
	for _, a := range attrCodes {
		if from.Attrs&a.bit != 0 && to.Attrs&a.bit == 0 {
			clearing = true
			break
		}
	}
	fromColor := [6]uint8{from.FgR, from.FgG, from.FgB, from.BgR, from.BgG, from.BgB}
	toColor := [6]uint8{to.FgR, to.FgG, to.FgB, to.BgR, to.BgG, to.BgB}
	colorCleared := fromColor != toColor && isZeroColor(toColor) && !isZeroColor(fromColor)

	var codes []int
	if clearing || colorCleared {
		codes = append(codes, 0)
		codes = appendAttrOnCodes(codes, to.Attrs)
		codes = appendColorCodes(codes, to, caps)
	} else {
		for _, a := range attrCodes {
			if from.Attrs&a.bit == 0 && to.Attrs&a.bit != 0 {
				codes = append(codes, a.on)
			}
		}
		if fromColor != toColor {
			codes = appendColorCodes(codes, to, caps)
		}
	}
	if len(codes) == 0 {
		return true
	}
	return writeSGR(b, codes)
}

func appendAttrOnCodes(codes []int, attrs cellbuf.AttrMask) []int {
	for _, a := range attrCodes {
		if attrs&a.bit != 0 {
			codes = append(codes, a.on)
		}
	}
	return codes
}

func isZeroColor(c [6]uint8) bool {
	for _, v := range c {
		if v != 0 {
			return false
		}
	}
	return true
}

// appendColorCodes appends foreground then background color SGR codes
// for to's colors, downgraded per caps.ColorMode.
func appendColorCodes(codes []int, to cellbuf.Style, caps Caps) []int {
	codes = appendOneColorCodes(codes, to.FgR, to.FgG, to.FgB, true, caps.ColorMode)
	codes = appendOneColorCodes(codes, to.BgR, to.BgG, to.BgB, false, caps.ColorMode)
	return codes
}

func appendOneColorCodes(codes []int, r, g, bl uint8, fg bool, mode ColorMode) []int {
	base := 38
	if !fg {
		base = 48
	}
	switch mode {
	case ColorRGB:
		return append(codes, base, 2, int(r), int(g), int(bl))
	case Color256:
		return append(codes, base, 5, rgbTo256(r, g, bl))
	default: // Color16
		code := rgbTo16(r, g, bl, fg)
		return append(codes, code)
	}
}

// rgbTo256 downgrades an RGB triple to the xterm 256-color cube index
// deterministically: each channel is quantized to one of 6 steps.
func rgbTo256(r, g, b uint8) int {
	q := func(v uint8) int {
		return int(v) * 5 / 255
	}
	return 16 + 36*q(r) + 6*q(g) + q(b)
}

// rgbTo16 downgrades an RGB triple to one of the 8 standard SGR colors
// (30-37 fg / 40-47 bg) by nearest-channel-threshold, deterministically.
func rgbTo16(r, g, b uint8, fg bool) int {
	idx := 0
	if r >= 128 {
		idx |= 1
	}
	if g >= 128 {
		idx |= 2
	}
	if b >= 128 {
		idx |= 4
	}
	if fg {
		return 30 + idx
	}
	return 40 + idx
}

func writeSGR(b *bytewriter.Builder, codes []int) bool {
	if !b.AppendString("\x1b[") {
		return false
	}
	for i, c := range codes {
		if i > 0 {
			if !b.AppendByte(';') {
				return false
			}
		}
		if !b.AppendString(strconv.Itoa(c)) {
			return false
		}
	}
	return b.AppendByte('m')
}
