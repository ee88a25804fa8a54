package credential

import (
	"golang.org/x/crypto/bcrypt"
)

// Guard hashes and verifies room passwords. It has no room awareness;
// the plaintext never leaves this package once hashed.
type Guard struct {
	cost int
}

// NewGuard builds a Guard with the given bcrypt work factor. Costs
// outside bcrypt's supported range fall back to the default.
func NewGuard(cost int) *Guard {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Guard{cost: cost}
}

func (g *Guard) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), g.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored credential.
// A malformed credential verifies as false, never as an error.
func (g *Guard) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}
