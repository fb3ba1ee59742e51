package auth

import "golang.org/x/crypto/bcrypt"

// Hash returns a bcrypt digest of the secret using the given cost.  The
// salt is generated per call, so hashing the same input twice yields
// different digests that both verify.
func Hash(secret string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares a bcrypt digest and a candidate secret.  A
// malformed digest is just a non-match, never a panic.
func Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
