package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// E.164, as Twilio expects it.
var phoneRegex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

func ValidateRegister(name, email, password string, phone *string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Name is required")
	} else if len(name) < 2 {
		errs.Add("name", "Name must be at least 2 characters")
	} else if len(name) > 100 {
		errs.Add("name", "Name is too long")
	}

	validateEmail(email, errs)
	validatePassword(password, errs)

	if phone != nil && *phone != "" && !phoneRegex.MatchString(*phone) {
		errs.Add("phone_number", "Phone number must be in E.164 format, like +15551234567")
	}

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, errs)
	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

// ValidatePattern checks a weekly availability rule: ISO day of week and a
// forward wall-clock window within one day.
func ValidatePattern(dayOfWeek, startMinute, endMinute int) ValidationErrors {
	errs := make(ValidationErrors)

	if dayOfWeek < 1 || dayOfWeek > 7 {
		errs.Add("day_of_week", "Day of week must be between 1 (Monday) and 7 (Sunday)")
	}
	if startMinute < 0 || startMinute >= 24*60 {
		errs.Add("start_minute", "Start must be between 0 and 1439 minutes")
	}
	if endMinute <= 0 || endMinute > 24*60 {
		errs.Add("end_minute", "End must be between 1 and 1440 minutes")
	}
	if startMinute >= endMinute {
		errs.Add("start_minute", "Start must be before end")
	}

	return errs
}

func ValidateQuietHours(startMinute, endMinute int) ValidationErrors {
	errs := make(ValidationErrors)

	if startMinute < 0 || startMinute >= 24*60 {
		errs.Add("quiet_start_minute", "Quiet start must be between 0 and 1439 minutes")
	}
	if endMinute < 0 || endMinute >= 24*60 {
		errs.Add("quiet_end_minute", "Quiet end must be between 0 and 1439 minutes")
	}

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
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
