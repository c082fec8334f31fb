package validator

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	minPasswordLength = 6
	maxDisplayName    = 100
	maxTitle          = 200
	maxContent        = 10000
	maxComment        = 2000
)

func ValidateRegister(email, password, displayName string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)
	validatePassword(password, errs)

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if utf8.RuneCountInString(displayName) > maxDisplayName {
		errs.Add("display_name", "Display name is too long")
	}

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)
	validatePassword(password, errs)

	return errs
}

func ValidatePost(title, content string) ValidationErrors {
	errs := make(ValidationErrors)

	validateText("title", "Title", title, maxTitle, errs)
	validateText("content", "Content", content, maxContent, errs)

	return errs
}

// ValidatePostUpdate checks only the fields present in the update.
func ValidatePostUpdate(title, content *string) ValidationErrors {
	errs := make(ValidationErrors)

	if title != nil {
		validateText("title", "Title", *title, maxTitle, errs)
	}
	if content != nil {
		validateText("content", "Content", *content, maxContent, errs)
	}

	return errs
}

func ValidateComment(content string) ValidationErrors {
	errs := make(ValidationErrors)

	validateText("content", "Comment", content, maxComment, errs)

	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if password == "" {
		errs.Add("password", "Password is required")
	} else if len(password) < minPasswordLength {
		errs.Add("password", "Password must be at least 6 characters")
	}
}

func validateText(field, label, value string, limit int, errs ValidationErrors) {
	value = strings.TrimSpace(value)
	if value == "" {
		errs.Add(field, label+" is required")
	} else if utf8.RuneCountInString(value) > limit {
		errs.Add(field, label+" is too long")
	}
}
