package directory

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// VerifyPassword checks supplied against the stored credential. Backends
// hash passwords with bcrypt on write, but rows imported from a legacy
// deployment may still hold cleartext; those are compared in constant
// time until the next password change rotates them onto bcrypt.
func VerifyPassword(stored, supplied string) bool {
	if stored == "" {
		return supplied == ""
	}
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
