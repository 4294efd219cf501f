// Package validate implements the per-step field validation passes.
// Each pass is pure: it inspects the form data and returns a fresh
// error map, fully replacing any previous one.
package validate

import (
	"regexp"
	"strconv"
	"strings"

	"lead-capture/internal/models"
)

// Loan amount bounds in whole dollars.
const (
	MinLoanAmount = 1_000
	MaxLoanAmount = 10_000_000
)

var (
	nameRegex  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitRegex = regexp.MustCompile(`\D`)
)

// Step1 validates the loan details. The returned map is empty when the
// step may advance.
func Step1(form models.FormData) models.FormErrors {
	errs := models.FormErrors{}

	amount := strings.TrimSpace(form.LoanAmount)
	switch {
	case amount == "":
		errs[models.FieldLoanAmount] = "Loan amount is required"
	default:
		value, err := strconv.ParseFloat(amount, 64)
		switch {
		case err != nil || value <= 0:
			errs[models.FieldLoanAmount] = "Please enter a valid loan amount"
		case value < MinLoanAmount:
			errs[models.FieldLoanAmount] = "Minimum loan amount is $1,000"
		case value > MaxLoanAmount:
			errs[models.FieldLoanAmount] = "Maximum loan amount is $10,000,000"
		}
	}

	if !form.LoanType.IsValid() {
		errs[models.FieldLoanType] = "Please select a loan type"
	}

	return errs
}

// Step2 validates the contact details.
func Step2(form models.FormData) models.FormErrors {
	errs := models.FormErrors{}

	name := strings.TrimSpace(form.Name)
	switch {
	case name == "":
		errs[models.FieldName] = "Full name is required"
	case len(name) < 2:
		errs[models.FieldName] = "Name must be at least 2 characters"
	case !nameRegex.MatchString(name):
		errs[models.FieldName] = "Name contains invalid characters"
	}

	email := strings.TrimSpace(form.Email)
	switch {
	case email == "":
		errs[models.FieldEmail] = "Email address is required"
	case !emailRegex.MatchString(email):
		errs[models.FieldEmail] = "Please enter a valid email address"
	}

	phone := strings.TrimSpace(form.Phone)
	if phone == "" {
		errs[models.FieldPhone] = "Phone number is required"
	} else {
		digits := DigitsOnly(phone)
		if len(digits) < 10 {
			errs[models.FieldPhone] = "Please enter a valid 10-digit phone number"
		} else if len(digits) > 11 {
			errs[models.FieldPhone] = "Phone number is too long"
		}
	}

	return errs
}

// Step runs the validation pass for the given wizard step.
func Step(step int, form models.FormData) models.FormErrors {
	switch step {
	case models.StepLoanDetails:
		return Step1(form)
	case models.StepContactDetails:
		return Step2(form)
	default:
		return models.FormErrors{}
	}
}

// DigitsOnly strips every non-digit character. Formatting like
// "(555) 123-4567" never affects the digit-count rule.
func DigitsOnly(phone string) string {
	return digitRegex.ReplaceAllString(phone, "")
}
