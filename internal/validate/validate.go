// Package validate holds the credential and registration checks shared by the
// sign-in and sign-up pages.
package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field names used as keys in FieldErrors and Messages.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldFullName        = "fullName"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldConfirmPassword = "confirmPassword"
)

const minPasswordLength = 8

// Messages maps a field to the inline message shown when it fails validation.
var Messages = map[string]string{
	FieldEmail:           "Enter a valid work email.",
	FieldPassword:        "Password needs 8+ chars with 1 uppercase letter, 1 number, and 1 special character.",
	FieldFullName:        "Please enter your full name.",
	FieldFirstName:       "Please enter your first name.",
	FieldLastName:        "Please enter your last name.",
	FieldConfirmPassword: "Your passwords must match.",
}

var emailRegexp = regexp.MustCompile(`.+@.+\..+`)

// Credential is the transient sign-in payload. It is never persisted.
type Credential struct {
	Email    string
	Password string
}

// Registration is the sign-up form payload.
type Registration struct {
	FullName        string
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// FieldErrors maps a field name to its inline error message.
type FieldErrors map[string]string

// OK reports whether no field failed.
func (fe FieldErrors) OK() bool {
	return len(fe) == 0
}

// IsValidEmail matches the coarse "local@domain.tld" shape. It is deliberately
// permissive and not RFC 5322 complete.
func IsValidEmail(s string) bool {
	return emailRegexp.MatchString(s)
}

// IsStrongPassword requires at least 8 characters including a digit, an
// uppercase letter and a character outside [A-Za-z0-9_] and whitespace.
func IsStrongPassword(s string) bool {
	if utf8.RuneCountInString(s) < minPasswordLength {
		return false
	}
	var digit, upper, special bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case isWordRune(r) || unicode.IsSpace(r):
		default:
			special = true
		}
	}
	return digit && upper && special
}

// isWordRune mirrors the \w class: ASCII letters, digits and underscore.
func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// IsValidName reports whether the trimmed name has at least two characters.
func IsValidName(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= 2
}

// PasswordsMatch reports whether the confirmation equals a non-empty password.
func PasswordsMatch(password, confirmation string) bool {
	return password != "" && password == confirmation
}

// SignIn validates a sign-in submission.
func SignIn(c Credential) FieldErrors {
	errs := FieldErrors{}
	if !IsValidEmail(strings.TrimSpace(c.Email)) {
		errs[FieldEmail] = Messages[FieldEmail]
	}
	if !IsStrongPassword(c.Password) {
		errs[FieldPassword] = Messages[FieldPassword]
	}
	return errs
}

// SignUp validates a sign-up submission. The form either carries a single full
// name or separate first and last names; only the fields present are checked.
func SignUp(r Registration) FieldErrors {
	errs := FieldErrors{}
	if r.FirstName == "" && r.LastName == "" {
		if !IsValidName(r.FullName) {
			errs[FieldFullName] = Messages[FieldFullName]
		}
	} else {
		if !IsValidName(r.FirstName) {
			errs[FieldFirstName] = Messages[FieldFirstName]
		}
		if !IsValidName(r.LastName) {
			errs[FieldLastName] = Messages[FieldLastName]
		}
	}
	if !IsValidEmail(strings.TrimSpace(r.Email)) {
		errs[FieldEmail] = Messages[FieldEmail]
	}
	if !IsStrongPassword(r.Password) {
		errs[FieldPassword] = Messages[FieldPassword]
	}
	if !PasswordsMatch(r.Password, r.ConfirmPassword) {
		errs[FieldConfirmPassword] = Messages[FieldConfirmPassword]
	}
	return errs
}

// SplitFullName splits "Jordan Alvarez" into first and last name. A single word
// yields an empty last name.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
