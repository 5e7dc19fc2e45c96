package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const codeDigits = 6

func generateRecoveryCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateCodeSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashRecoveryCode(code, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}

// codeMatches compares a submitted code against the stored hash in constant time.
func codeMatches(submitted, salt, storedHash string) bool {
	submitted = strings.TrimSpace(submitted)
	if len(submitted) != codeDigits || storedHash == "" {
		return false
	}
	got := hashRecoveryCode(submitted, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}
