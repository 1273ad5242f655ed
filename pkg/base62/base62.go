// Package base62 encodes integers with the URL-safe alphabet 0-9, A-Z, a-z.
package base62

import (
	"errors"
	"math"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = 62

var (
	ErrInvalidCharacter = errors.New("invalid character in base62 string")
	ErrOverflow         = errors.New("decoded value exceeds uint64 range")
)

var index [256]int8

func init() {
	for i := range index {
		index[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		index[alphabet[i]] = int8(i)
	}
}

// Encode returns the base62 form of num, most significant digit first.
func Encode(num uint64) string {
	if num == 0 {
		return "0"
	}

	buf := make([]byte, 0, 11)
	for num > 0 {
		buf = append(buf, alphabet[num%base])
		num /= base
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

func Decode(s string) (uint64, error) {
	var result uint64
	for i := 0; i < len(s); i++ {
		v := index[s[i]]
		if v < 0 {
			return 0, ErrInvalidCharacter
		}
		if result > (math.MaxUint64-uint64(v))/base {
			return 0, ErrOverflow
		}
		result = result*base + uint64(v)
	}
	return result, nil
}

// IsValid reports whether s is non-empty and only uses the base62 alphabet.
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if index[s[i]] < 0 {
			return false
		}
	}
	return true
}
