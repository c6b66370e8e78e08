package credential

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
)

const (
	minPasswordLength = 6
	passwordSymbols   = "@$!%*?&"
)

// BcryptHasher hashes passwords with bcrypt after checking them against the
// password policy.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost
// is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash implements auth.CredentialHasher.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify implements auth.CredentialHasher.
func (h *BcryptHasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword requires at least six characters drawn from letters,
// digits and @$!%*?&, with at least one uppercase letter, one digit and one
// of those symbols.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", auth.ErrPasswordPolicy, minPasswordLength)
	}
	var upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		default:
			return fmt.Errorf("%w: contains unsupported character %q", auth.ErrPasswordPolicy, r)
		}
	}
	if !upper || !digit || !symbol {
		return fmt.Errorf("%w: needs an uppercase letter, a digit and one of %s", auth.ErrPasswordPolicy, passwordSymbols)
	}
	return nil
}

var _ auth.CredentialHasher = (*BcryptHasher)(nil)
