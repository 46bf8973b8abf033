package sir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbehnke/sir-codec/pkg/units"
)

const (
	sir3MinFields = FieldSir3LastOff + 1
	sir4MinFields = FieldSir4Refs
)

// decoder converts sir,3/sir,4 cycle counts back to sir,2 ticks.
type decoder struct {
	fields []string
	freq   int
	out    strings.Builder
}

func (d *decoder) field(i int) (int, error) {
	if i >= len(d.fields) {
		return 0, fmt.Errorf("%w: missing field %d", ErrMalformed, i)
	}
	v, err := strconv.Atoi(d.fields[i])
	if err != nil {
		return 0, fmt.Errorf("%w: field %d %q", ErrMalformed, i, d.fields[i])
	}
	return v, nil
}

// ticks converts the cycle count in field i to sir,2 ticks.
func (d *decoder) ticks(i int) (int, error) {
	n, err := d.field(i)
	if err != nil {
		return 0, err
	}
	return units.TicksFromCycles(n, d.freq)
}

func (d *decoder) write(values ...int) {
	for _, v := range values {
		d.out.WriteByte(',')
		d.out.WriteString(strconv.Itoa(v))
	}
}

// DecodeToSir2 expands a sir,3 or sir,4 command into the equivalent sir,2
// command. The header count, channel, id, repeat and offset fields are copied
// unchanged; the frequency field becomes Per.
func DecodeToSir2(cmd string) (string, error) {
	fields := strings.Split(cmd, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) <= FieldStartOf || fields[0] != "sir" {
		return "", fmt.Errorf("%w: %d fields", ErrMalformed, len(fields))
	}

	format := fields[FieldFormat]
	switch format {
	case "3":
		if len(fields) < sir3MinFields {
			return "", fmt.Errorf("%w: sir,3 needs %d fields, got %d", ErrMalformed, sir3MinFields, len(fields))
		}
	case "4":
		if len(fields) < sir4MinFields {
			return "", fmt.Errorf("%w: sir,4 needs %d fields, got %d", ErrMalformed, sir4MinFields, len(fields))
		}
	default:
		return "", fmt.Errorf("%w: sir,%s", ErrUnsupportedFormat, format)
	}

	d := &decoder{fields: fields}
	freq, err := d.field(FieldPeriod)
	if err != nil {
		return "", err
	}
	d.freq = freq

	per, err := units.PeriodFromFrequency(freq)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&d.out, "%s,%s,%s,%s,%d,%s,%s", PrefixSir2,
		fields[FieldCount], fields[FieldChannel], fields[FieldID],
		per, fields[FieldRepeat], fields[FieldOffset])

	if err := d.pair(FieldStartOn, FieldStartOf); err != nil {
		return "", err
	}

	if format == "4" {
		err = d.sir4()
	} else {
		err = d.sir3()
	}
	if err != nil {
		return "", err
	}
	return d.out.String(), nil
}

func (d *decoder) pair(onField, offField int) error {
	on, err := d.ticks(onField)
	if err != nil {
		return err
	}
	off, err := d.ticks(offField)
	if err != nil {
		return err
	}
	d.write(on, off)
	return nil
}

func (d *decoder) sir4() error {
	var refs []int
	for i := FieldSir4Refs; i < len(d.fields); i++ {
		if d.fields[i] == "" {
			continue
		}
		t, err := d.ticks(i)
		if err != nil {
			return err
		}
		refs = append(refs, t)
	}

	ref := func(idx int, c byte) (int, error) {
		if idx >= len(refs) {
			return 0, fmt.Errorf("%w: letter %q without reference %d", ErrMalformed, c, idx+1)
		}
		return refs[idx], nil
	}

	letters := d.fields[FieldSir4Letters]
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		switch {
		case c >= 'A' && c <= 'P':
			t, err := ref(int(c-'A'), c)
			if err != nil {
				return err
			}
			d.write(t)
		case c >= 'a' && c <= 'u':
			nibble := int(c-'a') & 0xF
			for bit := 0; bit < Sir4RunLength; bit++ {
				t, err := ref(nibble>>bit&1, c)
				if err != nil {
					return err
				}
				d.write(t)
			}
		}
	}

	return d.pair(FieldSir4LastOn, FieldSir4LastOff)
}

func (d *decoder) sir3() error {
	var ref [4]int
	for i := range ref {
		t, err := d.ticks(FieldSir3On0 + i)
		if err != nil {
			return err
		}
		ref[i] = t
	}
	on0, off0, on1, off1 := ref[0], ref[1], ref[2], ref[3]

	count, err := d.field(FieldCount)
	if err != nil {
		return err
	}
	totalBits := (count - 10) / 2

	payload := d.fields[FieldSir3Payload]
	if len(payload)%2 != 0 {
		return &PayloadParityError{Length: len(payload)}
	}
	if bits := len(payload) / 2 * Sir3BitsPerWord; bits < totalBits {
		return &PayloadTooShortError{Bits: bits, Required: totalBits}
	}

	words := make([]int, 0, len(payload)/2)
	for i := 0; i+1 < len(payload); i += 2 {
		words = append(words, int(payload[i])<<8|int(payload[i+1]))
	}

	for i := 0; i < totalBits; i++ {
		if words[i/Sir3BitsPerWord]&Sir3BitMasks[i%Sir3BitsPerWord] != 0 {
			d.write(on1, off1)
		} else {
			d.write(on0, off0)
		}
	}

	return d.pair(FieldSir3LastOn, FieldSir3LastOff)
}
