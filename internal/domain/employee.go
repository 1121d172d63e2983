package domain

import "encoding/json"

// Group is a qualifying project/unit discovered in the source HR system.
type Group struct {
	ID   string `json:"group_id"`
	Name string `json:"group_name"`
}

// MembershipRecord is one employee's default assignment within a group.
// Within a run, EmployeeID is unique across all records: the first group
// that contributes an employee wins.
type MembershipRecord struct {
	EmployeeID    string `json:"employee_id"`
	GroupID       string `json:"group_id"`
	GroupName     string `json:"group_name"`
	LaborCategory string `json:"labor_category"`
}

// MemberDetail holds the source-system profile fields needed to create a
// target identity. HireDate and BirthDate are raw ISO date-time strings
// (e.g. "2011-07-11T00:00:00") and may be empty.
type MemberDetail struct {
	EmployeeID string `json:"employee_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	HireDate   string `json:"hire_date"`
	BirthDate  string `json:"birth_date"`
	IsActive   bool   `json:"is_active"`
}

// FullName is the display name used in creation results and reports.
func (d MemberDetail) FullName() string {
	return d.FirstName + " " + d.LastName
}

// CreationResult is the per-employee outcome of a live creation attempt.
type CreationResult struct {
	EmployeeID string          `json:"employee_id"`
	Name       string          `json:"name"`
	Success    bool            `json:"success"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
}
