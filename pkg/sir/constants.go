package sir

// Command prefixes
const (
	Prefix     = "sir,"
	PrefixSir2 = "sir,2"
	PrefixSir3 = "sir,3"
	PrefixSir4 = "sir,4"
)

// Parser limits
const (
	BufferSize    = 1000  // Working buffer for one decoded command
	MaxPulses     = 900   // Maximum accumulated values after the count field
	MaxPulseValue = 65500 // Largest value accepted in any field
	maxDigits     = 5     // Decimal digits per field (formats 2/3/5/6)
	maxDigitsRTL  = 6     // Right-to-left digit slots (formats 4/7)
)

// Canonical pulse array offsets
const (
	OffsetCount   = 0 // Total length used by the encoders (header + pulses)
	OffsetChannel = 1 // Logical output channel
	OffsetID      = 2 // Device identifier
	OffsetPeriod  = 3 // Per (0.1 µs) in sir,2, freq (Hz) after compatibility
	OffsetRepeat  = 4 // Transmission repeat count
	OffsetOffset  = 5 // Implementation defined
	OffsetPulses  = 6 // First pulse duration (start burst ON)
	HeaderSize    = 6
)

// Text field offsets after strings.Split(cmd, ",")
const (
	FieldFormat  = 1
	FieldCount   = 2
	FieldChannel = 3
	FieldID      = 4
	FieldPeriod  = 5 // Per in sir,2, freq in sir,3/sir,4
	FieldRepeat  = 6
	FieldOffset  = 7
	FieldStartOn = 8
	FieldStartOf = 9

	// sir,3
	FieldSir3On0     = 10
	FieldSir3Off0    = 11
	FieldSir3On1     = 12
	FieldSir3Off1    = 13
	FieldSir3Payload = 14
	FieldSir3LastOn  = 15
	FieldSir3LastOff = 16

	// sir,4
	FieldSir4Letters = 10
	FieldSir4LastOn  = 11
	FieldSir4LastOff = 12
	FieldSir4Refs    = 13
)

// sir,3 encoder limits
const (
	Sir3MinCount     = 26 // Smallest count the two-level packer accepts
	Sir3Tolerance    = 5  // ± raw cycles when matching bit0/bit1 references
	Sir3WordBase     = 0x4141
	Sir3FirstWordPos = 12 // Array position of the first packed word
	Sir3BitsPerWord  = 8
)

// sir,4 encoder limits
const (
	Sir4MinCount      = 12
	Sir4MaxReferences = 16
	Sir4RunLength     = 4   // A/B letters packed into one lowercase letter
	Sir4DefaultLetter = 'X' // Pulse that matches no reference
)

// MinPulseTime is the shortest duration (in cycles) the encoders accept.
const MinPulseTime = 2

// Sir3BitMasks maps a bit position within a word to its flag. The positions
// (13,12,11,9,5,4,3,1) are fixed by the firmware.
var Sir3BitMasks = [Sir3BitsPerWord]int{
	0x2000, // bit 13
	0x1000, // bit 12
	0x0800, // bit 11
	0x0200, // bit 9
	0x0020, // bit 5
	0x0010, // bit 4
	0x0008, // bit 3
	0x0002, // bit 1
}

// sir3ClearMasks are applied when bit positions 3 and 7 are set.
var sir3ClearMasks = [Sir3BitsPerWord]int{
	3: 0xFEFF,
	7: 0xFFFE,
}
