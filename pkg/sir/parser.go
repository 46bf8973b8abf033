package sir

import "strconv"

type parseState int

const (
	statePrefixS parseState = iota
	statePrefixI
	statePrefixR
	stateSeparator
	stateFormat
	stateDecimalStart // formats 2, 5, 6
	stateDecimal
	stateSir4Start
	stateSir4Header
	stateSir4Letters
	stateSir4Footer
	stateSir7Start
	stateSir7Header
	stateSir7Letters
	stateSir3Start
	stateSir3Body
	stateDone
)

const (
	sir4HeaderFields = 8
	sir7HeaderFields = 6
	sir7Length       = 26
	sir3ZipStart     = 12
)

// parser holds the working state of one Parse call.
type parser struct {
	state  parseState
	format byte
	values []int
	count  int
	result []int // set when format 2 finishes early

	digits []byte             // left-to-right decimal digits
	rtl    [maxDigitsRTL]byte // right-to-left digit slots
	nrtl   int

	zip bool // sir,3 packed region
	msb bool
}

// Parse decodes a sir,2/3/4/5/6/7 command into a canonical pulse array.
// The buffer must end with '\r', '\n', ' ' or '\\'. A false result means the
// command was rejected; no partial output is ever returned.
//
// Format 2 is upgraded to the compatibility (cycles) representation before
// returning. The other formats return the raw decoded values.
func Parse(buf string) ([]int, bool) {
	if len(buf) < 5 {
		return nil, false
	}

	p := &parser{
		values: make([]int, BufferSize),
		digits: make([]byte, 0, maxDigits+1),
	}

	for i := 0; i < len(buf) && p.state != stateDone; i++ {
		if !p.step(buf[i]) {
			return nil, false
		}
	}

	if p.state != stateDone {
		return nil, false
	}
	if p.result != nil {
		return p.result, true
	}
	if p.count > MaxPulses {
		return nil, false
	}
	return p.values[:p.count+1], true
}

func (p *parser) step(c byte) bool {
	switch p.state {
	case statePrefixS:
		p.state = matchOr(c, 's', statePrefixI)
	case statePrefixI:
		p.state = matchOr(c, 'i', statePrefixR)
	case statePrefixR:
		p.state = matchOr(c, 'r', stateSeparator)
	case stateSeparator:
		p.state = stateFormat
	case stateFormat:
		return p.selectFormat(c)
	case stateDecimalStart:
		if c != ',' {
			return false
		}
		p.resetDigits()
		p.count = 0
		p.state = stateDecimal
	case stateDecimal:
		return p.decimal(c)
	case stateSir4Start, stateSir7Start:
		if c != ',' {
			return false
		}
		p.resetDigits()
		p.count = 0
		if p.state == stateSir4Start {
			p.state = stateSir4Header
		} else {
			p.state = stateSir7Header
		}
	case stateSir4Header:
		return p.sir4Header(c)
	case stateSir4Letters:
		return p.sir4Letters(c)
	case stateSir4Footer:
		return p.sir4Footer(c)
	case stateSir7Header:
		return p.sir7Header(c)
	case stateSir7Letters:
		return p.sir7Letters(c)
	case stateSir3Start:
		if c != ',' {
			return false
		}
		p.resetDigits()
		p.count = 0
		p.zip = false
		p.state = stateSir3Body
	case stateSir3Body:
		return p.sir3Body(c)
	}
	return true
}

func matchOr(c, want byte, next parseState) parseState {
	if c == want {
		return next
	}
	return statePrefixS
}

func (p *parser) selectFormat(c byte) bool {
	switch c {
	case '2', '5', '6':
		p.state = stateDecimalStart
	case '3':
		p.state = stateSir3Start
	case '4':
		p.state = stateSir4Start
	case '7':
		p.state = stateSir7Start
	default:
		return false
	}
	p.format = c
	return true
}

// decimal handles the comma separated fields of formats 2, 5 and 6.
func (p *parser) decimal(c byte) bool {
	switch {
	case isTerminator(c):
		v, ok := p.decimalValue()
		if !ok || v > MaxPulseValue {
			return false
		}
		p.values[p.count] = v
		if p.format == '2' {
			out, ok := ToCompatibility(p.values)
			if !ok {
				return false
			}
			p.result = out[:out[OffsetCount]+HeaderSize]
		}
		p.state = stateDone
	case c == ',':
		v, ok := p.decimalValue()
		if !ok || v > MaxPulseValue {
			return false
		}
		if !p.store(v) {
			return false
		}
		p.resetDigits()
	case isDigit(c):
		p.digits = append(p.digits, c)
		if len(p.digits) > maxDigits {
			return false
		}
	default:
		return false
	}
	return true
}

func (p *parser) sir4Header(c byte) bool {
	switch {
	case c == ',':
		v := p.rtlValue()
		if v <= 0 || v > MaxPulseValue {
			return false
		}
		if !p.store(v) {
			return false
		}
		p.resetDigits()
		if p.count == sir4HeaderFields {
			p.state = stateSir4Letters
		}
	case isDigit(c):
		return p.pushRTL(c)
	default:
		return false
	}
	return true
}

func (p *parser) sir4Letters(c byte) bool {
	switch {
	case c == ',':
		p.resetDigits()
		p.state = stateSir4Footer
	case c >= 'A' && c <= 'Z':
		return p.store(int(c))
	case c >= 'a' && c <= 'z':
		for range Sir4RunLength {
			if !p.store(int(c)) {
				return false
			}
		}
	default:
		return false
	}
	return true
}

func (p *parser) sir4Footer(c byte) bool {
	switch {
	case c == ',':
		v := p.rtlValue()
		if v <= 0 || v > MaxPulseValue {
			return false
		}
		if !p.store(v) {
			return false
		}
		p.resetDigits()
	case isDigit(c):
		return p.pushRTL(c)
	default:
		// Any other character ends the command.
		v := p.rtlValue()
		if v <= 0 || v > MaxPulseValue {
			return false
		}
		if !p.store(v) || !p.store(0) {
			return false
		}
		p.state = stateDone
	}
	return true
}

func (p *parser) sir7Header(c byte) bool {
	switch {
	case c == ',':
		v := p.rtlValue()
		if v > MaxPulseValue {
			return false
		}
		if !p.store(v) {
			return false
		}
		p.resetDigits()
		if p.count == sir7HeaderFields {
			p.state = stateSir7Letters
		}
	case isDigit(c):
		return p.pushRTL(c)
	default:
		return false
	}
	return true
}

func (p *parser) sir7Letters(c byte) bool {
	if (c >= 'a' && c <= 'z') || isDigit(c) {
		return p.store(int(c))
	}
	if p.count != sir7Length {
		return false
	}
	p.state = stateDone
	return true
}

// sir3Body reads the decimal header, then the packed two-byte words until the
// next comma, then the trailing decimal fields.
func (p *parser) sir3Body(c byte) bool {
	switch {
	case isTerminator(c):
		v, ok := p.decimalValue()
		if !ok {
			v = 0
		}
		p.values[p.count] = v
		p.state = stateDone
	case c == ',' && !p.zip:
		v, _ := p.decimalValue()
		if v <= 0 || v > MaxPulseValue {
			return false
		}
		if !p.store(v) {
			return false
		}
		if p.count == sir3ZipStart {
			p.zip = true
			p.msb = true
		}
		p.resetDigits()
	case c == ',' && p.zip:
		p.zip = false
		p.resetDigits()
	case p.zip && p.msb:
		p.values[p.count] = int(c) << 8
		p.msb = false
	case p.zip:
		p.values[p.count] += int(c)
		p.count++
		if p.count > MaxPulses {
			return false
		}
		p.msb = true
	default:
		if !isDigit(c) {
			return false
		}
		p.digits = append(p.digits, c)
		if len(p.digits) > maxDigits {
			return false
		}
	}
	return true
}

// store writes v at the current position and advances.
func (p *parser) store(v int) bool {
	p.values[p.count] = v
	p.count++
	return p.count <= MaxPulses
}

func (p *parser) resetDigits() {
	p.digits = p.digits[:0]
	p.rtl = [maxDigitsRTL]byte{}
	p.nrtl = 0
}

func (p *parser) decimalValue() (int, bool) {
	if len(p.digits) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(string(p.digits))
	if err != nil {
		return 0, false
	}
	return v, true
}

func (p *parser) pushRTL(c byte) bool {
	if p.nrtl >= maxDigitsRTL {
		return false
	}
	p.rtl[maxDigitsRTL-1-p.nrtl] = c
	p.nrtl++
	return true
}

// rtlValue orders the right-to-left slots least significant first and pads
// the unused slots with '0'.
func (p *parser) rtlValue() int {
	var d [maxDigitsRTL]byte
	for i := range d {
		d[i] = '0'
	}
	for i := 0; i < p.nrtl; i++ {
		d[i] = p.rtl[maxDigitsRTL-p.nrtl+i]
	}
	return DigitsToInt(d)
}

// DigitsToInt returns d[0] + 10*d[1] + 100*d[2] + ... for ASCII digits.
func DigitsToInt(d [6]byte) int {
	v := 0
	weight := 1
	for _, c := range d {
		v += weight * (int(c) - '0')
		weight *= 10
	}
	return v
}

func isTerminator(c byte) bool {
	return c == '\r' || c == '\n' || c == ' ' || c == '\\'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
