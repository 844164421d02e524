package auth

import "golang.org/x/crypto/bcrypt"

// DefaultCost matches the cost existing accounts were hashed with.
const DefaultCost = 10

type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a bcrypt hasher; cost <= 0 selects DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(bytes), err
}

// Compare returns nil when password matches hash.
func (h *PasswordHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
