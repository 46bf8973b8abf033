package sir

import (
	"errors"
	"fmt"
)

// CompressError codes
const (
	CodePulseCountTooSmall = "PULSE_COUNT_TOO_SMALL"
	CodePulseTimeTooSmall  = "PULSE_TIME_TOO_SMALL"
)

// CompressError reports a hard precondition failure in the sir,3 or sir,4
// encoders.
type CompressError struct {
	Code    string
	Message string
}

func (e *CompressError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func countTooSmall(count, min int) *CompressError {
	return &CompressError{
		Code:    CodePulseCountTooSmall,
		Message: fmt.Sprintf("pulse count %d < %d", count, min),
	}
}

func timeTooSmall(values ...int) *CompressError {
	return &CompressError{
		Code:    CodePulseTimeTooSmall,
		Message: fmt.Sprintf("pulse time < %d (values %v)", MinPulseTime, values),
	}
}

// PayloadParityError is returned when a sir,3 payload has an odd byte count.
type PayloadParityError struct {
	Length int
}

func (e *PayloadParityError) Error() string {
	return fmt.Sprintf("sir,3 payload has odd length %d", e.Length)
}

// PayloadTooShortError is returned when a sir,3 payload encodes fewer bits
// than the header declares.
type PayloadTooShortError struct {
	Bits     int
	Required int
}

func (e *PayloadTooShortError) Error() string {
	return fmt.Sprintf("sir,3 payload holds %d bits, header requires %d", e.Bits, e.Required)
}

var (
	// ErrMalformed is returned when a command is missing fields or holds
	// non-numeric values where numbers are expected.
	ErrMalformed = errors.New("malformed sir command")

	// ErrUnsupportedFormat is returned for formats the operation cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported sir format")
)
