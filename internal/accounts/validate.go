package accounts

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	MaxUsernameLen     = 150
	MaxPhoneLen        = 15
	MaxFarmLocationLen = 200
	MaxTitleLen        = 200
	MaxInstitutionLen  = 200
	MaxLanguagesLen    = 200
)

var usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

// NormalizeEmail lowercases the domain part, as Django's user manager does.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

func ValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	a, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return a.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}

// ValidUsername allows letters, digits and @/./+/-/_ up to MaxUsernameLen.
func ValidUsername(u string) bool {
	return u != "" && len(u) <= MaxUsernameLen && usernameRe.MatchString(u)
}

// ParseCropTypes validates a list of crop names.
func ParseCropTypes(in []string) ([]CropType, error) {
	out := make([]CropType, 0, len(in))
	for _, s := range in {
		ct := CropType(s)
		if !ct.Valid() {
			return nil, NewValidationError("crop_types", fmt.Sprintf("Invalid crop type: %s", s))
		}
		out = append(out, ct)
	}
	return out, nil
}

// ValidatePassword applies the minimal password policy.
func ValidatePassword(field, pw string) error {
	if strings.TrimSpace(pw) == "" {
		return NewValidationError(field, "This field may not be blank.")
	}
	if len(pw) < 8 {
		return NewValidationError(field, "Ensure this field has at least 8 characters.")
	}
	if strings.Trim(pw, "0123456789") == "" {
		return NewValidationError(field, "This password is entirely numeric.")
	}
	return nil
}

// MaxLen records a message on ve when s is longer than n.
func MaxLen(ve *ValidationError, field, s string, n int) {
	if len(s) > n {
		ve.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", n))
	}
}

// Required records a message on ve when s is blank.
func Required(ve *ValidationError, field, s string) {
	if strings.TrimSpace(s) == "" {
		ve.Add(field, "This field is required.")
	}
}
