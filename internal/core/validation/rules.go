// Package validation holds the pure input rules applied before any account
// is created or changed.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/policynav/accounts/internal/core/domain"
)

const (
	minPasswordLength = 8
	// bcrypt rejects inputs longer than 72 bytes.
	maxSecretBytes = 72
	symbols        = `!@#$%^&*(),.?":{}|<>`
)

var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[a-zA-Z]{2,}$`)

// IsValidEmail reports whether s has the shape local@domain.tld.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// PasswordStrength scores pw from 0 to 4: one point each for length >= 8,
// an uppercase letter, a digit and a symbol.
func PasswordStrength(pw string) int {
	score := 0
	if utf8.RuneCountInString(pw) >= minPasswordLength {
		score++
	}
	if strings.IndexFunc(pw, unicode.IsUpper) >= 0 {
		score++
	}
	if strings.IndexFunc(pw, unicode.IsDigit) >= 0 {
		score++
	}
	if strings.ContainsAny(pw, symbols) {
		score++
	}
	return score
}

// Policy holds the configurable parts of the registration rules.
type Policy struct {
	// MinUsernameLength is the minimum username length in characters; 0 disables the check.
	MinUsernameLength int
	// RequireLowercase additionally demands a lowercase letter in passwords.
	RequireLowercase bool
}

// DefaultPolicy is the strict variant: usernames of 3+ characters and
// passwords with upper, lower and digit.
func DefaultPolicy() Policy {
	return Policy{MinUsernameLength: 3, RequireLowercase: true}
}

// IsStrongPassword is the hard gate for accepting a password.
func (p Policy) IsStrongPassword(pw string) bool {
	if utf8.RuneCountInString(pw) < minPasswordLength || len(pw) > maxSecretBytes {
		return false
	}
	if strings.IndexFunc(pw, unicode.IsUpper) < 0 || strings.IndexFunc(pw, unicode.IsDigit) < 0 {
		return false
	}
	if p.RequireLowercase && strings.IndexFunc(pw, unicode.IsLower) < 0 {
		return false
	}
	return true
}

// ValidUsername applies the username length policy.
func (p Policy) ValidUsername(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= p.MinUsernameLength && strings.TrimSpace(s) != ""
}

// RegistrationInput is the raw data submitted on sign-up.
type RegistrationInput struct {
	Username string
	Email    string
	Password string
	Question string
	Answer   string
}

// CheckRegistration validates every field and returns a *domain.ValidationError
// listing all failures, or nil.
func (p Policy) CheckRegistration(in RegistrationInput) error {
	var ve domain.ValidationError

	if !p.ValidUsername(in.Username) {
		ve.Add("username", fmt.Sprintf("must be at least %d characters", max(p.MinUsernameLength, 1)))
	}
	if !IsValidEmail(in.Email) {
		ve.Add("email", "invalid email format")
	}
	if !p.IsStrongPassword(in.Password) {
		ve.Add("password", p.PasswordRule())
	}
	if !domain.IsSecurityQuestion(in.Question) {
		ve.Add("security_question", "unknown security question")
	}
	answer := domain.NormalizeAnswer(in.Answer)
	switch {
	case answer == "":
		ve.Add("security_answer", "is required")
	case len(answer) > maxSecretBytes:
		ve.Add("security_answer", fmt.Sprintf("must be at most %d bytes", maxSecretBytes))
	}

	return ve.Err()
}

// PasswordRule describes the password requirement p enforces.
func (p Policy) PasswordRule() string {
	if p.RequireLowercase {
		return "must be 8+ chars with upper, lower and number"
	}
	return "must be 8+ chars with upper and number"
}
