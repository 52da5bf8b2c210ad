package directory

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/couchdir/couchdir/types"
)

// UnusablePassword is a sentinel that can never equal a computed hash
// descriptor; it marks an account as non-login-capable.
const UnusablePassword = "!"

// passwordAlgorithm is the single algorithm new descriptors are written
// with. CheckPassword additionally verifies older md5 descriptors so
// migrated rows keep working credentials.
const passwordAlgorithm = "sha1"

const saltLength = 5

// SetPassword replaces u's password with a fresh sha1$salt$digest
// descriptor. The salt is the hex digest of two independent random
// values truncated to five characters; short enough that directory-wide
// salt collisions are possible, which is an accepted weakness of the
// legacy descriptor format.
func SetPassword(u *types.User, rawPassword string) error {
	r1, err := randomToken()
	if err != nil {
		return err
	}
	r2, err := randomToken()
	if err != nil {
		return err
	}
	salt := hexDigest(passwordAlgorithm, r1, r2)[:saltLength]
	u.Password = fmt.Sprintf("%s$%s$%s", passwordAlgorithm, salt, hexDigest(passwordAlgorithm, salt, rawPassword))
	return nil
}

// CheckPassword reports whether rawPassword matches u's stored
// descriptor. The unusable sentinel and malformed descriptors never
// match anything.
func CheckPassword(u *types.User, rawPassword string) bool {
	if !HasUsablePassword(u) {
		return false
	}
	algo, salt, digest, ok := splitDescriptor(u.Password)
	if !ok {
		return false
	}
	computed := hexDigest(algo, salt, rawPassword)
	if computed == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// SetUnusablePassword marks the account as non-login-capable.
func SetUnusablePassword(u *types.User) {
	u.Password = UnusablePassword
}

// HasUsablePassword reports whether the account can log in at all.
func HasUsablePassword(u *types.User) bool {
	return u.Password != "" && u.Password != UnusablePassword
}

func splitDescriptor(stored string) (algo, salt, digest string, ok bool) {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// hexDigest computes the hex digest of salt+raw under the named
// algorithm. Unknown algorithms yield the empty string.
func hexDigest(algo, salt, raw string) string {
	switch algo {
	case "sha1":
		sum := sha1.Sum([]byte(salt + raw))
		return hex.EncodeToString(sum[:])
	case "md5":
		sum := md5.Sum([]byte(salt + raw))
		return hex.EncodeToString(sum[:])
	default:
		return ""
	}
}

func randomToken() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
