package service

import (
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const minPasswordLen = 8

func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	if !emailPattern.MatchString(email) {
		return validationError("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < minPasswordLen {
		return validationError("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		return validationError("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return validationError("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return validationError("password must contain at least one number")
	}
	if !hasSymbol {
		return validationError("password must contain at least one symbol")
	}
	return nil
}

func validateRegistration(in *RegisterInput) error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if in.NationalID == "" {
		return validationError("national id is required")
	}
	if !in.Role.Valid() {
		return validationError("role must be applicant or coordinator")
	}
	if strings.TrimSpace(in.Profile.FirstName) == "" || strings.TrimSpace(in.Profile.LastName) == "" {
		return validationError("first and last name are required")
	}
	if !in.Employment.Status.Valid() {
		return validationError("unknown employment status")
	}
	return nil
}
