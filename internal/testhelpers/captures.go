package testhelpers

import (
	"strconv"
	"strings"
)

// Timings in sir,2 ticks for an NEC-style remote. With Per 160 (62.5 kHz)
// every value converts to an exact number of carrier cycles.
const (
	CapturePer = 160

	StartOn  = 5620
	StartOff = 2810
	BitOn    = 350
	Bit0Off  = 350
	Bit1Off  = 1050
	FinalOn  = 350
	FinalOff = 25000
)

// NECBits is address 0x00, ~0xFF, command 0x00, ~0xFF, LSB first.
const NECBits = "00000000111111110000000011111111"

// NECPulses returns the flattened ON/OFF durations of one frame: a start
// burst, one pair per bit and a final pair carrying the trailing pause.
func NECPulses(bits string) []int {
	pulses := make([]int, 0, 2*len(bits)+4)
	pulses = append(pulses, StartOn, StartOff)
	for _, b := range bits {
		if b == '1' {
			pulses = append(pulses, BitOn, Bit1Off)
		} else {
			pulses = append(pulses, BitOn, Bit0Off)
		}
	}
	return append(pulses, FinalOn, FinalOff)
}

// Frames concatenates frames copies of pulses, ending every frame except the
// last with gap as its final OFF time.
func Frames(pulses []int, frames, gap int) []int {
	out := make([]int, 0, len(pulses)*frames)
	for i := 0; i < frames; i++ {
		out = append(out, pulses...)
		if i < frames-1 {
			out[len(out)-1] = gap
		}
	}
	return out
}

// Sir2Command renders pulses as a sir,2 command on channel 1, id 1, repeat 1.
// The count field is len(pulses)+6, the layout the encoders expect.
func Sir2Command(per int, pulses []int) string {
	var b strings.Builder
	b.WriteString("sir,2,")
	b.WriteString(strconv.Itoa(len(pulses) + 6))
	b.WriteString(",1,1,")
	b.WriteString(strconv.Itoa(per))
	b.WriteString(",1,1")
	for _, p := range pulses {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// NECCommand is the sir,2 command of one NEC frame with NECBits.
func NECCommand() string {
	return Sir2Command(CapturePer, NECPulses(NECBits))
}
