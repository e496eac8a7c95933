package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aworlds/universe/internal/protocol"
)

func TestWorldName(t *testing.T) {
	cases := []struct {
		name string
		want protocol.ReasonCode
	}{
		{"", protocol.ReasonNameTooShort},
		{"ab", protocol.ReasonSuccess},
		{"abcdefgh", protocol.ReasonSuccess},
		{"abcdefghi", protocol.ReasonNameTooLong},
		{"ab cd", protocol.ReasonNameContainsNonalphanumericChar},
		{" ab", protocol.ReasonNameContainsInvalidBlank},
		{"ab ", protocol.ReasonNameEndsWithBlank},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WorldName(c.name), "WorldName(%q)", c.name)
	}
}

func TestCitizenNameLongerCap(t *testing.T) {
	assert.Equal(t, protocol.ReasonSuccess, CitizenName("abcdefghi"))
	assert.Equal(t, protocol.ReasonSuccess, CitizenName(strings.Repeat("a", 255)))
	assert.Equal(t, protocol.ReasonNameTooLong, CitizenName(strings.Repeat("a", 256)))
	assert.Equal(t, protocol.ReasonNameTooShort, CitizenName("a"))
}

func TestValidWorldName(t *testing.T) {
	assert.True(t, ValidWorldName("world1"))
	assert.False(t, ValidWorldName("a"))
}

func TestWorldNameUnicodeAlphanumeric(t *testing.T) {
	// is_alphanumeric in the Unicode sense accepts non-ASCII letters.
	assert.Equal(t, protocol.ReasonSuccess, WorldName("café"))
}
