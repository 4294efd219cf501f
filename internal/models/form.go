// internal/models/form.go
package models

// LoanType enumerates the loan products offered on step 1.
type LoanType string

const (
	LoanTypeUnset    LoanType = ""
	LoanTypePersonal LoanType = "Personal"
	LoanTypeBusiness LoanType = "Business"
	LoanTypeMortgage LoanType = "Mortgage"
)

// IsValid reports whether the value is one of the selectable loan types.
// The unset value is not selectable.
func (t LoanType) IsValid() bool {
	switch t {
	case LoanTypePersonal, LoanTypeBusiness, LoanTypeMortgage:
		return true
	}
	return false
}

// LoanDetails holds the step-1 fields. The amount stays a string until
// validation so the user's raw input round-trips unchanged.
type LoanDetails struct {
	LoanAmount string   `json:"loanAmount"`
	LoanType   LoanType `json:"loanType"`
}

// ContactDetails holds the step-2 fields.
type ContactDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// FormData is the full set of captured fields across both wizard steps.
type FormData struct {
	LoanDetails
	ContactDetails
}

// IsEmpty reports whether every field holds its initial zero value.
func (f FormData) IsEmpty() bool {
	return f == FormData{}
}

// FormErrors maps a field name to a human-readable message. Only fields
// currently failing validation are present; a validation pass replaces
// the whole map rather than merging into it.
type FormErrors map[string]string

// Field name keys used in FormErrors.
const (
	FieldLoanAmount = "loanAmount"
	FieldLoanType   = "loanType"
	FieldName       = "name"
	FieldEmail      = "email"
	FieldPhone      = "phone"
)

// Wizard step bounds. Step 1 captures loan details, step 2 captures
// contact details and is the only step submission may start from.
const (
	StepLoanDetails    = 1
	StepContactDetails = 2

	FirstStep = StepLoanDetails
	LastStep  = StepContactDetails
)

// LoanDetailsUpdate is a partial update for step-1 fields. Nil fields
// are left untouched.
type LoanDetailsUpdate struct {
	LoanAmount *string
	LoanType   *LoanType
}

// ContactDetailsUpdate is a partial update for step-2 fields.
type ContactDetailsUpdate struct {
	Name  *string
	Email *string
	Phone *string
}
