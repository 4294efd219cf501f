package models

// AdminUser is a user record as listed on the admin dashboard. Admin
// records keep the backend's string identifiers.
type AdminUser struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Role      Role   `json:"role"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	LastLogin string `json:"lastLogin,omitempty"`
}

// LeadContact is the contact block embedded in a lead record.
type LeadContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Lead is a submitted lead as listed on the admin dashboard.
type Lead struct {
	ID            string       `json:"_id"`
	LoanAmount    float64      `json:"loanAmount"`
	LoanType      string       `json:"loanType"`
	Status        string       `json:"status"`
	LeadScore     float64      `json:"leadScore"`
	EstimatedRate string       `json:"estimatedRate,omitempty"`
	CreatedAt     string       `json:"createdAt"`
	Contact       *LeadContact `json:"contactInfo,omitempty"`
	User          *LeadContact `json:"userId,omitempty"`
}

// Account is a customer account created from an accepted lead.
type Account struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Status      string `json:"status"`
	AccountType string `json:"accountType"`
	CreatedAt   string `json:"createdAt"`
}

// StatusBreakdown is one row of the per-status lead aggregate.
type StatusBreakdown struct {
	Status      string  `json:"_id"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// DashboardStats is the aggregate block on the admin dashboard.
type DashboardStats struct {
	TotalUsers      int               `json:"totalUsers"`
	TotalLeads      int               `json:"totalLeads"`
	TotalLoanAmount float64           `json:"totalLoanAmount"`
	AvgLeadScore    float64           `json:"avgLeadScore"`
	StatusBreakdown []StatusBreakdown `json:"statusBreakdown"`
}

// AdminOverview bundles everything the admin dashboard shows.
type AdminOverview struct {
	Users    []AdminUser     `json:"users"`
	Accounts []Account       `json:"accounts"`
	Leads    []Lead          `json:"leads"`
	Stats    *DashboardStats `json:"stats"`
}
