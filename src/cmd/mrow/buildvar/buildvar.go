// Package buildvar parses the integer values handed to boot stages through
// build-time environment variables.
//
// The accepted syntax is what the stages themselves accept at compile time:
// decimal digits with an optional leading '+', no whitespace, no '-' for
// unsigned types.
package buildvar

import (
	"fmt"
	"math"

	"github.com/xyproto/env/v2"
)

// Stage2Size is the variable carrying the stage 2 size hint to stage 1.
const Stage2Size = "MROW_STAGE_2_SIZE"

// SyntaxError reports a value that is not a valid unsigned decimal.
type SyntaxError struct {
	Value string
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid value %q: %s", e.Value, e.Msg)
}

// RangeError reports a value that does not fit the target type.
type RangeError struct {
	Value string
	Bits  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("value %q overflows a %d bit unsigned integer", e.Value, e.Bits)
}

// ParseUint parses s as an unsigned decimal that must fit in bits bits.
func ParseUint(s string, bits int) (uint64, error) {
	digits := s
	switch {
	case s == "+" || s == "-":
		return 0, &SyntaxError{Value: s, Msg: "invalid digit"}
	case len(s) > 0 && s[0] == '+':
		digits = s[1:]
	case len(s) > 0 && s[0] == '-':
		return 0, &SyntaxError{Value: s, Msg: "unsigned integers cannot be negative"}
	}

	limit := uint64(math.MaxUint64)
	if bits < 64 {
		limit = 1<<uint(bits) - 1
	}

	var result uint64
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, &SyntaxError{Value: s, Msg: "invalid digit"}
		}
		d := uint64(c - '0')
		if result > (limit-d)/10 {
			return 0, &RangeError{Value: s, Bits: bits}
		}
		result = result*10 + d
	}
	return result, nil
}

// ParseUint16 parses s as an unsigned 16 bit decimal.
func ParseUint16(s string) (uint16, error) {
	v, err := ParseUint(s, 16)
	return uint16(v), err
}

// LookupUint16 reads the named variable from the environment. A missing
// variable yields zero and ok == false.
func LookupUint16(name string) (v uint16, ok bool, err error) {
	if !env.Has(name) {
		return 0, false, nil
	}
	v, err = ParseUint16(env.Str(name))
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", name, err)
	}
	return v, true, nil
}
