package password

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
)

// LegacySalt is the fixed prefix used by accounts imported from the previous
// user table.
const LegacySalt = "yang"

var md5Hex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// LegacyMD5 verifies hex(md5(LegacySalt + password)) digests. It never
// produces new hashes; accounts are rehashed on their next successful login.
type LegacyMD5 struct{}

func (LegacyMD5) Handles(encoded string) bool { return md5Hex.MatchString(encoded) }

func (LegacyMD5) Verify(plain, encoded string) (bool, error) {
	sum := md5.Sum([]byte(LegacySalt + plain))
	want := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(want), []byte(encoded)) == 1, nil
}

// LegacyDigest returns the legacy digest for plain. Used to seed fixtures.
func LegacyDigest(plain string) string {
	sum := md5.Sum([]byte(LegacySalt + plain))
	return hex.EncodeToString(sum[:])
}
