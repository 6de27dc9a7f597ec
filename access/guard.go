// Package access decides whether a request is allowed to modify files on the
// disk.
package access

// Guard validates a presented credential against the single shared secret the
// daemon was configured with.
//
// The comparison is a plain string equality check and is therefore not constant
// time. The threat being handled here is unauthenticated or accidental access,
// not an attacker timing responses to recover the secret byte by byte. Anything
// exposed to an untrusted network should switch to subtle.ConstantTimeCompare.
type Guard struct {
	secret string
}

// NewGuard returns a Guard that accepts only the given secret.
func NewGuard(secret string) *Guard {
	return &Guard{secret: secret}
}

// Authorize returns true only if the presented credential is exactly the
// configured secret. A missing credential should be passed as an empty string.
func (g *Guard) Authorize(presented string) bool {
	return presented == g.secret
}
