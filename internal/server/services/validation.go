package services

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

const (
	DefaultPasswordMinLength = 8
	DefaultPasswordMaxLength = 16
)

// PasswordPolicy bounds password length in characters.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultPasswordMinLength, MaxLength: DefaultPasswordMaxLength}
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the sign-in payload.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
}

// normalizeEmail trims surrounding whitespace; addresses are otherwise
// stored and compared as given.
func normalizeEmail(s string) string {
	return strings.TrimSpace(s)
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("email must be a valid address")
	}
	return nil
}

func (p PasswordPolicy) validate(password string) error {
	n := utf8.RuneCountInString(password)
	if p.MinLength > 0 && n < p.MinLength {
		return validationError("password must be at least %d characters", p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return validationError("password must be at most %d characters", p.MaxLength)
	}
	return nil
}

func (in *RegisterInput) validate(p PasswordPolicy) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if in.Username == "" {
		return validationError("username is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	return p.validate(in.Password)
}

func (in *LoginInput) validate() error {
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" {
		return validationError("email is required")
	}
	if in.Password == "" {
		return validationError("password is required")
	}
	return nil
}
