package domain

import (
	dErrors "qrscan/pkg/domain-errors"
)

const (
	// DNIMinDigits and DNIMaxDigits bound the length of a student identifier.
	DNIMinDigits = 8
	DNIMaxDigits = 10
)

// DNI is a normalized student identifier.
// Invariant: the value is 8 to 10 ASCII decimal digits.
//
// Usage: construct via ParseDNI at trust boundaries; direct casting bypasses
// validation and must be limited to tests.
type DNI string

// ParseDNI constructs a DNI from external input. It does not trim or otherwise
// rewrite the input; callers that accept free text must extract the digits first.
//
// Errors: returns CodeInvalidInput when the value is not 8 to 10 digits.
func ParseDNI(s string) (DNI, error) {
	if !IsDNI(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "dni must be 8 to 10 digits")
	}
	return DNI(s), nil
}

// IsDNI reports whether s satisfies the DNI invariant.
func IsDNI(s string) bool {
	if len(s) < DNIMinDigits || len(s) > DNIMaxDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (d DNI) String() string {
	return string(d)
}

// IsValid re-checks the invariant; useful at boundaries that receive a DNI by value.
func (d DNI) IsValid() bool {
	return IsDNI(string(d))
}
