package sir

import (
	"strconv"
	"strings"
)

// FormatOf returns the format digit of a sir command ("2", "3", ...), or an
// empty string when cmd is not a sir command.
func FormatOf(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if !strings.HasPrefix(cmd, Prefix) || len(cmd) < len(Prefix)+1 {
		return ""
	}
	rest := cmd[len(Prefix):]
	if i := strings.IndexByte(rest, ','); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// UpdateRepeatChannel rewrites the channel (field 3) and repeat (field 6)
// header values of a sir,2/3/4 command. Trailing CR/LF characters are kept.
// Any other input is returned unchanged.
func UpdateRepeatChannel(cmd string, repeat, channel int) string {
	if !strings.HasPrefix(cmd, Prefix) {
		return cmd
	}

	s := strings.TrimLeft(cmd, " \t")
	s = strings.TrimRight(s, " \t")
	body := strings.TrimRight(s, "\r\n")
	trailer := s[len(body):]
	body = strings.TrimSpace(body)

	parts := strings.Split(body, ",")
	if len(parts) <= FieldRepeat || parts[0] != "sir" {
		return cmd
	}
	switch parts[FieldFormat] {
	case "2", "3", "4":
	default:
		return cmd
	}

	parts[FieldRepeat] = strconv.Itoa(repeat)
	parts[FieldChannel] = strconv.Itoa(channel)
	return strings.Join(parts, ",") + trailer
}

// RepeatOf reads the repeat field of a sir,2/3/4 command, returning 1 when it
// cannot be read.
func RepeatOf(cmd string) int {
	if !strings.HasPrefix(cmd, Prefix) {
		return 1
	}
	parts := strings.Split(strings.TrimSpace(cmd), ",")
	if len(parts) <= FieldRepeat {
		return 1
	}
	rep, err := strconv.Atoi(parts[FieldRepeat])
	if err != nil {
		return 1
	}
	return rep
}

// RepeatPulses repeats the full pulse sequence rep times.
func RepeatPulses(pulses []int, rep int) []int {
	if rep <= 1 || len(pulses) == 0 {
		return pulses
	}
	out := make([]int, 0, len(pulses)*rep)
	for range rep {
		out = append(out, pulses...)
	}
	return out
}

// PulsesOf extracts the pulse durations of a sir,2 command for display. The
// pulses normally start after the six header fields; commands whose header
// carries two extra non-numeric fields are read from position 8.
func PulsesOf(sir2 string) []int {
	if !strings.HasPrefix(sir2, PrefixSir2+",") {
		return nil
	}

	var parts []string
	for _, tok := range strings.Split(strings.TrimSpace(sir2[len(PrefixSir2)+1:]), ",") {
		if tok != "" {
			parts = append(parts, strings.TrimSpace(tok))
		}
	}

	for _, start := range []int{HeaderSize, HeaderSize + 2} {
		if pulses, ok := atoiAll(parts, start); ok && len(pulses) > 0 {
			return pulses
		}
	}
	return nil
}

func atoiAll(parts []string, start int) ([]int, bool) {
	if start >= len(parts) {
		return nil, false
	}
	out := make([]int, 0, len(parts)-start)
	for _, tok := range parts[start:] {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
