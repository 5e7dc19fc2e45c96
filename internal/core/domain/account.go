package domain

import (
	"strings"
	"time"
)

// Account is a registered user. ID and Email never change after creation.
type Account struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	SecurityQuestion string    `json:"security_question"`
	SecurityAnswer   string    `json:"-"` // bcrypt of NormalizeAnswer(answer)
	IsAdmin          bool      `json:"is_admin"`
	OTPAttempts      int       `json:"otp_attempts"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// securityQuestions is the fixed set offered at registration.
var securityQuestions = []string{
	"What is your favorite color?",
	"What is your pet's name?",
	"What is your birth city?",
	"Pet name?",
	"Mother's maiden name?",
	"Favorite teacher?",
}

// SecurityQuestions returns a copy of the selectable security questions.
func SecurityQuestions() []string {
	out := make([]string, len(securityQuestions))
	copy(out, securityQuestions)
	return out
}

// IsSecurityQuestion reports whether q is one of the fixed questions.
func IsSecurityQuestion(q string) bool {
	for _, known := range securityQuestions {
		if known == q {
			return true
		}
	}
	return false
}

// NormalizeAnswer lowercases and trims a security answer so that hashing and
// comparison are case-insensitive.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// NormalizeEmail trims surrounding whitespace. Case is preserved: emails are
// matched exactly.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
