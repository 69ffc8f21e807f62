package services

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validatePassword(field, password string) error {
	if strings.TrimSpace(password) == "" {
		return FieldError(field, "this field is required")
	}
	if len(password) < minPasswordLength {
		return FieldError(field, "password must be at least 8 characters")
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return FieldError(field, "password must be at most 72 bytes")
	}
	return nil
}
