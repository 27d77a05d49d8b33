// Package codec implements the Base62 positional numeral codec used to turn
// generated numeric identifiers into short codes.
package codec

import (
	"fmt"
	"strings"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = uint64(len(alphabet))

var reverse [256]int8

func init() {
	for i := range reverse {
		reverse[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		reverse[alphabet[i]] = int8(i)
	}
}

// Encode returns the minimal-length Base62 representation of n. Encode(0) == "0".
func Encode(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// Decode parses a Base62 string back into its numeric value. It rejects
// empty input and any symbol outside the alphabet.
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("base62: empty string")
	}

	var n uint64
	for i := 0; i < len(s); i++ {
		v := reverse[s[i]]
		if v < 0 {
			return 0, fmt.Errorf("base62: invalid symbol %q in %q", s[i], s)
		}
		n = n*base + uint64(v)
	}
	return n, nil
}

// Valid reports whether s consists solely of Base62 alphabet symbols.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return r > 255 || reverse[byte(r)] < 0
	}) == -1
}
