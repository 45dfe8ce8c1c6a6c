// Package inputparser decodes a stream of host terminal bytes into
// normalized eventqueue.Events. It is a structural adaptation of
// terminal.AnsiParser: the same ground/escape/CSI state enumeration and
// incremental byte-at-a-time walk, but instead of driving OnPrint/OnCsi
// callbacks that mutate a terminal buffer, it emits key, text, mouse,
// focus and paste events, and preserves partial-sequence state across
// calls the same way the teacher's parser buffers an incomplete tail.
// It does not produce resize events.
package inputparser

import (
	"github.com/vtengine/core/internal/textmetrics"
	"github.com/vtengine/core/pkg/eventqueue"
)

type state int

const (
	stateGround state = iota
	stateEscape
	stateEscapeIntermediate
	stateCsiEntry
	stateCsiParam
	stateCsiIntermediate
	stateCsiIgnore
	stateSS3
	stateOscString
	stateDcsString
	statePasteCollect
	stateMouseX10
)

var pasteStartParam = 200
var pasteEndTerminator = []byte{0x1b, '[', '2', '0', '1', '~'}

// Parser is a byte-oriented VT/CSI/SS3 input state machine. It has no
// wall-clock or locale dependency: the caller supplies the timestamp
// stamped onto every emitted event.
type Parser struct {
	Queue *eventqueue.Queue

	state        state
	intermediate []byte
	params       []int
	currentParam int
	sgrMouse     bool

	pasteBuf []byte

	mouseX10Buf [3]byte
	mouseX10N   int
}

// New creates a Parser that pushes decoded events onto q.
func New(q *eventqueue.Queue) *Parser {
	return &Parser{
		Queue:        q,
		intermediate: make([]byte, 0, 4),
		params:       make([]int, 0, 8),
	}
}

// Reset returns the parser to ground state, discarding any buffered
// partial sequence. The queue itself is untouched.
func (p *Parser) Reset() {
	p.state = stateGround
	p.intermediate = p.intermediate[:0]
	p.params = p.params[:0]
	p.currentParam = 0
	p.sgrMouse = false
	p.pasteBuf = p.pasteBuf[:0]
	p.mouseX10N = 0
}

// Parse walks data through the state machine, pushing normalized events
// onto p.Queue stamped with nowMs. Any sequence left incomplete at the
// end of data is preserved in parser state and resumed on the next
// call.
func (p *Parser) Parse(data []byte, nowMs uint32) {
	for i := 0; i < len(data); {
		b := data[i]

		switch p.state {
		case stateGround:
			i += p.stepGround(data[i:], nowMs)

		case stateEscape:
			p.stepEscape(b, nowMs)
			i++

		case stateEscapeIntermediate:
			p.stepEscapeIntermediate(b)
			i++

		case stateSS3:
			p.stepSS3(b, nowMs)
			i++

		case stateCsiEntry, stateCsiParam, stateCsiIntermediate:
			p.stepCsi(b, nowMs)
			i++

		case stateCsiIgnore:
			if b >= 0x40 && b <= 0x7e {
				p.state = stateGround
			}
			i++

		case stateOscString:
			if b == 0x07 {
				p.state = stateGround
			} else if b == 0x1b && i+1 < len(data) && data[i+1] == '\\' {
				p.state = stateGround
				i++
			}
			i++

		case stateDcsString:
			if b == 0x1b && i+1 < len(data) && data[i+1] == '\\' {
				p.state = stateGround
				i++
			}
			i++

		case statePasteCollect:
			p.pasteBuf = append(p.pasteBuf, b)
			if hasSuffix(p.pasteBuf, pasteEndTerminator) {
				payload := p.pasteBuf[:len(p.pasteBuf)-len(pasteEndTerminator)]
				p.emit(eventqueue.Event{Type: eventqueue.TypePaste, TimeMs: nowMs, Bytes: append([]byte(nil), payload...)})
				p.pasteBuf = p.pasteBuf[:0]
				p.state = stateGround
			}
			i++

		case stateMouseX10:
			p.mouseX10Buf[p.mouseX10N] = b
			p.mouseX10N++
			if p.mouseX10N == 3 {
				p.emitX10Mouse(nowMs)
				p.mouseX10N = 0
				p.state = stateGround
			}
			i++

		default:
			p.state = stateGround
			i++
		}
	}
}

// stepGround consumes one unit from the front of rest (one ASCII byte,
// one decoded UTF-8 scalar, or the ESC that starts an escape sequence)
// and returns how many bytes it consumed.
func (p *Parser) stepGround(rest []byte, nowMs uint32) int {
	b := rest[0]
	switch {
	case b == 0x1b:
		p.state = stateEscape
		return 1
	case b == '\r':
		p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: eventqueue.KeyEnter, Action: eventqueue.KeyActionPress})
		return 1
	case b == '\n':
		p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: eventqueue.KeyEnter, Action: eventqueue.KeyActionPress})
		return 1
	case b == '\t':
		p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: eventqueue.KeyTab, Action: eventqueue.KeyActionPress})
		return 1
	case b == 0x7f || b == 0x08:
		p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: eventqueue.KeyBackspace, Action: eventqueue.KeyActionPress})
		return 1
	case b < 0x20:
		// Other C0 controls carry no normalized key mapping; consumed
		// silently, matching the teacher's OnExecute-with-no-handler path.
		return 1
	case b < 0x80:
		p.emit(eventqueue.Event{Type: eventqueue.TypeText, TimeMs: nowMs, Scalar: rune(b)})
		return 1
	default:
		d := textmetrics.DecodeUTF8(rest)
		p.emit(eventqueue.Event{Type: eventqueue.TypeText, TimeMs: nowMs, Scalar: d.Scalar})
		if d.Size <= 0 {
			return 1
		}
		return d.Size
	}
}

func (p *Parser) stepEscape(b byte, nowMs uint32) {
	switch {
	case b == '[':
		p.params = p.params[:0]
		p.intermediate = p.intermediate[:0]
		p.currentParam = 0
		p.sgrMouse = false
		p.state = stateCsiEntry
	case b == 'O':
		p.state = stateSS3
	case b == ']':
		p.state = stateOscString
	case b == 'P':
		p.state = stateDcsString
	case b >= 0x20 && b <= 0x2f:
		p.intermediate = append(p.intermediate[:0], b)
		p.state = stateEscapeIntermediate
	default:
		// Not the start of a recognized multi-byte sequence: this ESC
		// stands alone. Emit Escape and reprocess b in ground state so
		// Alt+key arrives as Escape followed by the key's own event.
		p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: eventqueue.KeyEscape, Action: eventqueue.KeyActionPress})
		p.state = stateGround
		p.Parse([]byte{b}, nowMs)
	}
}

func (p *Parser) stepEscapeIntermediate(b byte) {
	if b >= 0x20 && b <= 0x2f {
		p.intermediate = append(p.intermediate, b)
		return
	}
	// Unknown escape sequence: consumed without emitting an event.
	p.state = stateGround
}

func (p *Parser) stepSS3(b byte, nowMs uint32) {
	var code eventqueue.KeyCode
	switch b {
	case 'P':
		code = eventqueue.KeyF1
	case 'Q':
		code = eventqueue.KeyF2
	case 'R':
		code = eventqueue.KeyF3
	case 'S':
		code = eventqueue.KeyF4
	default:
		p.state = stateGround
		return
	}
	p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: code, Action: eventqueue.KeyActionPress})
	p.state = stateGround
}

func (p *Parser) stepCsi(b byte, nowMs uint32) {
	switch {
	case b >= '0' && b <= '9':
		p.currentParam = p.currentParam*10 + int(b-'0')
		p.state = stateCsiParam
	case b == ';':
		p.params = append(p.params, p.currentParam)
		p.currentParam = 0
		p.state = stateCsiParam
	case b == '<':
		p.sgrMouse = true
	case b == '?' || b == '>' || b == '=':
		// Private-mode/DEC markers: no normalized event, keep collecting.
	case b >= 0x20 && b <= 0x2f:
		p.intermediate = append(p.intermediate, b)
		p.state = stateCsiIntermediate
	case b >= 0x40 && b <= 0x7e:
		if p.state == stateCsiParam {
			p.params = append(p.params, p.currentParam)
		}
		p.dispatchCsi(b, nowMs)
	default:
		p.state = stateCsiIgnore
	}
}

func (p *Parser) dispatchCsi(final byte, nowMs uint32) {
	params := p.params
	p0 := paramAt(params, 0, 0)

	switch final {
	case 'A':
		p.emitArrow(eventqueue.KeyUp, params, nowMs)
	case 'B':
		p.emitArrow(eventqueue.KeyDown, params, nowMs)
	case 'C':
		p.emitArrow(eventqueue.KeyRight, params, nowMs)
	case 'D':
		p.emitArrow(eventqueue.KeyLeft, params, nowMs)
	case 'H':
		p.emitArrow(eventqueue.KeyHome, params, nowMs)
	case 'F':
		p.emitArrow(eventqueue.KeyEnd, params, nowMs)
	case 'I':
		p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: eventqueue.KeyFocusIn, Action: eventqueue.KeyActionPress})
	case 'O':
		p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: eventqueue.KeyFocusOut, Action: eventqueue.KeyActionPress})
	case '~':
		if p0 == pasteStartParam {
			p.pasteBuf = p.pasteBuf[:0]
			p.state = statePasteCollect
			return
		}
		p.emitTilde(p0, params, nowMs)
	case 'M', 'm':
		if p.sgrMouse {
			p.emitSGRMouse(params, final == 'm', nowMs)
		} else if len(params) == 0 && p.currentParam == 0 {
			p.mouseX10N = 0
			p.state = stateMouseX10
			return
		}
	}
	p.state = stateGround
}

func (p *Parser) emitArrow(code eventqueue.KeyCode, params []int, nowMs uint32) {
	mods := modifiersFromParam(paramAt(params, 1, 0))
	p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: code, Modifiers: mods, Action: eventqueue.KeyActionPress})
}

func (p *Parser) emitTilde(n int, params []int, nowMs uint32) {
	var code eventqueue.KeyCode
	switch n {
	case 2:
		code = eventqueue.KeyInsert
	case 3:
		code = eventqueue.KeyDelete
	case 5:
		code = eventqueue.KeyPageUp
	case 6:
		code = eventqueue.KeyPageDown
	case 15:
		code = eventqueue.KeyF5
	case 17:
		code = eventqueue.KeyF6
	case 18:
		code = eventqueue.KeyF7
	case 19:
		code = eventqueue.KeyF8
	case 20:
		code = eventqueue.KeyF9
	case 21:
		code = eventqueue.KeyF10
	case 23:
		code = eventqueue.KeyF11
	case 24:
		code = eventqueue.KeyF12
	default:
		return
	}
	mods := modifiersFromParam(paramAt(params, 1, 0))
	p.emit(eventqueue.Event{Type: eventqueue.TypeKey, TimeMs: nowMs, KeyCode: code, Modifiers: mods, Action: eventqueue.KeyActionPress})
}

// emitSGRMouse decodes CSI < Cb ; Cx ; Cy M/m. Button/kind/wheel/
// modifiers are folded together into Cb per the SGR mouse protocol: bit
// 2 (4) shift, bit 3 (8) alt, bit 4 (16) ctrl, bit 5 (32) motion, bit 6
// (64) wheel, low two bits the button index.
func (p *Parser) emitSGRMouse(params []int, release bool, nowMs uint32) {
	cb := paramAt(params, 0, 0)
	x := paramAt(params, 1, 1) - 1
	y := paramAt(params, 2, 1) - 1

	var mods eventqueue.Modifier
	if cb&4 != 0 {
		mods |= eventqueue.ModShift
	}
	if cb&8 != 0 {
		mods |= eventqueue.ModAlt
	}
	if cb&16 != 0 {
		mods |= eventqueue.ModCtrl
	}

	e := eventqueue.Event{Type: eventqueue.TypeMouse, TimeMs: nowMs, X: int32(x), Y: int32(y), Modifiers: mods}
	switch {
	case cb&64 != 0:
		e.MouseKind = eventqueue.MouseWheel
		if cb&1 != 0 {
			e.WheelDY = -1
		} else {
			e.WheelDY = 1
		}
	case cb&32 != 0:
		e.MouseKind = eventqueue.MouseDrag
		e.Buttons = uint32(cb & 3)
	case release:
		e.MouseKind = eventqueue.MouseUp
		e.Buttons = uint32(cb & 3)
	default:
		e.MouseKind = eventqueue.MouseDown
		e.Buttons = uint32(cb & 3)
	}
	p.emit(e)
}

// emitX10Mouse decodes the legacy "ESC [ M Cb Cx Cy" encoding, each
// byte offset by 0x20 and coordinates 1-based.
func (p *Parser) emitX10Mouse(nowMs uint32) {
	cb := int(p.mouseX10Buf[0]) - 0x20
	x := int(p.mouseX10Buf[1]) - 0x20 - 1
	y := int(p.mouseX10Buf[2]) - 0x20 - 1

	var mods eventqueue.Modifier
	if cb&4 != 0 {
		mods |= eventqueue.ModShift
	}
	if cb&8 != 0 {
		mods |= eventqueue.ModAlt
	}
	if cb&16 != 0 {
		mods |= eventqueue.ModCtrl
	}

	e := eventqueue.Event{Type: eventqueue.TypeMouse, TimeMs: nowMs, X: int32(x), Y: int32(y), Modifiers: mods}
	switch cb & 3 {
	case 3:
		e.MouseKind = eventqueue.MouseUp
	default:
		e.MouseKind = eventqueue.MouseDown
		e.Buttons = uint32(cb & 3)
	}
	p.emit(e)
}

func (p *Parser) emit(e eventqueue.Event) {
	if p.Queue != nil {
		p.Queue.Push(e)
	}
}

func paramAt(params []int, idx, def int) int {
	if idx < 0 || idx >= len(params) {
		return def
	}
	return params[idx]
}

func modifiersFromParam(n int) eventqueue.Modifier {
	if n <= 0 {
		return 0
	}
	m := n - 1
	var mod eventqueue.Modifier
	if m&1 != 0 {
		mod |= eventqueue.ModShift
	}
	if m&2 != 0 {
		mod |= eventqueue.ModAlt
	}
	if m&4 != 0 {
		mod |= eventqueue.ModCtrl
	}
	if m&8 != 0 {
		mod |= eventqueue.ModSuper
	}
	return mod
}

func hasSuffix(b, suffix []byte) bool {
	if len(b) < len(suffix) {
		return false
	}
	off := len(b) - len(suffix)
	for i := range suffix {
		if b[off+i] != suffix[i] {
			return false
		}
	}
	return true
}
