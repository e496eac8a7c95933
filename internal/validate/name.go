// Package validate implements the world and citizen name rules, shared
// by LicenseAdd, CitizenAdd, and tourist login so every
// caller that introduces a new name into the directory rejects the same
// malformed input the same way.
package validate

import (
	"unicode"

	"github.com/aworlds/universe/internal/protocol"
)

const (
	minNameLength        = 2
	maxWorldNameLength   = 8 // protocol-era constraint
	maxCitizenNameLength = 255
)

// WorldName checks a world/license name and returns the ReasonCode to
// send back to the client, or protocol.ReasonSuccess if name is well
// formed. Checks run in a fixed order — length, leading blank,
// trailing blank, character class — so a name failing more than one rule
// always reports the same ReasonCode.
func WorldName(name string) protocol.ReasonCode {
	return checkName(name, maxWorldNameLength)
}

// CitizenName applies the same rules with the citizen directory's
// longer length cap (2..=255 alphanumeric).
func CitizenName(name string) protocol.ReasonCode {
	return checkName(name, maxCitizenNameLength)
}

func checkName(name string, maxLength int) protocol.ReasonCode {
	runes := []rune(name)
	switch {
	case len(runes) < minNameLength:
		return protocol.ReasonNameTooShort
	case len(runes) > maxLength:
		return protocol.ReasonNameTooLong
	case unicode.IsSpace(runes[0]):
		return protocol.ReasonNameContainsInvalidBlank
	case unicode.IsSpace(runes[len(runes)-1]):
		return protocol.ReasonNameEndsWithBlank
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return protocol.ReasonNameContainsNonalphanumericChar
		}
	}
	return protocol.ReasonSuccess
}

// ValidWorldName reports whether name passes every world-name rule.
func ValidWorldName(name string) bool {
	return WorldName(name) == protocol.ReasonSuccess
}
