// Package trace turns an engine's diagnostic character stream into lines and
// parses ffprobe's compact output format into records and frame segments.
package trace

import "unicode/utf8"

// NoChar is the no-op marker a channel may emit in place of a character.
const NoChar = -1

const (
	lineFeed       = '\n'
	carriageReturn = '\r'
)

// LineAssembler rebuilds complete lines from a stream of single character
// codes. Use one assembler per diagnostic channel; sharing one between
// stdout and stderr would interleave partial lines.
type LineAssembler struct {
	buf  []byte
	emit func(line string)
}

// NewLineAssembler returns an assembler that calls emit once per non-empty line.
func NewLineAssembler(emit func(line string)) *LineAssembler {
	return &LineAssembler{emit: emit}
}

// Feed consumes one character code. A line feed or carriage return ends the
// current line; NoChar and other negative codes are ignored. Codes outside
// ASCII are stored UTF-8 encoded.
func (a *LineAssembler) Feed(code int) {
	switch {
	case code < 0:
		return
	case code == lineFeed || code == carriageReturn:
		a.Flush()
	case code < utf8.RuneSelf:
		a.buf = append(a.buf, byte(code))
	default:
		a.buf = utf8.AppendRune(a.buf, rune(code))
	}
}

// Write consumes p as raw bytes, so an assembler can be attached directly to a
// process's stdout or stderr and multi-byte output passes through unchanged.
// It never fails.
func (a *LineAssembler) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == lineFeed || b == carriageReturn {
			a.Flush()
			continue
		}
		a.buf = append(a.buf, b)
	}
	return len(p), nil
}

// Flush emits the pending line, if any, and starts a fresh one. Call it once
// the channel is closed so a final unterminated line is not lost.
func (a *LineAssembler) Flush() {
	if len(a.buf) == 0 {
		return
	}
	line := string(a.buf)
	a.buf = a.buf[:0]
	a.emit(line)
}
