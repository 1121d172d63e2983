package connecteam

import (
	"fmt"
	"strings"
	"time"

	"employee-sync/internal/domain"
)

// Custom field IDs in the target tenant.
const (
	cfDedupKey  int64 = 15329039 // source employee id (dedup key)
	cfHireDate  int64 = 4360693  // employment start date
	cfBirthDate int64 = 4360698  // birth date
	cfBranch    int64 = 4360696  // branch (group id)
	cfTeam      int64 = 4360694  // team
	cfTitle     int64 = 4360692  // title / labor category
	cfOrg       int64 = 4360695  // org name (group display name)
)

const (
	teamSecurity = "FL Security 2025"
	teamBaker    = "FL Baker 2025"

	securityGroupPrefix = "2392"
)

// TeamForGroup maps a group id to its team name. Business policy: the
// "2392" project prefix is the security portfolio, everything else rolls
// up to Baker.
func TeamForGroup(groupID string) string {
	if strings.HasPrefix(groupID, securityGroupPrefix) {
		return teamSecurity
	}
	return teamBaker
}

// FormatDate converts an ISO date-time string ("2011-07-11T00:00:00") to
// the MM/DD/YYYY calendar string the target API expects. Only the date
// portion is read; any time-of-day component is discarded.
func FormatDate(isoDate string) (string, error) {
	if len(isoDate) < 10 {
		return "", fmt.Errorf("connecteam: malformed date %q", isoDate)
	}
	t, err := time.Parse("2006-01-02", isoDate[:10])
	if err != nil {
		return "", fmt.Errorf("connecteam: malformed date %q: %w", isoDate, err)
	}
	return t.Format("01/02/2006"), nil
}

type CustomField struct {
	CustomFieldID int64  `json:"customFieldId"`
	Value         string `json:"value"`
}

// UserPayload is the creation request body for one user. Email is omitted
// entirely when the source profile has none; the account is still created.
type UserPayload struct {
	UserType     string        `json:"userType"`
	IsArchived   bool          `json:"isArchived"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Email        string        `json:"email,omitempty"`
	CustomFields []CustomField `json:"customFields"`
}

// PreviewEntry is one dry-run item: the payload that would have been sent,
// tagged for report correlation.
type PreviewEntry struct {
	EmployeeID string      `json:"_employee_id"`
	Name       string      `json:"_name"`
	Payload    UserPayload `json:"payload"`
}

// BuildUserPayload constructs the creation payload for one employee. Pure:
// identical inputs always yield identical output. Empty hire/birth dates
// are left out of the payload rather than sent as empty values.
func BuildUserPayload(m domain.MembershipRecord, d domain.MemberDetail) UserPayload {
	customFields := []CustomField{
		{CustomFieldID: cfDedupKey, Value: d.EmployeeID},
		{CustomFieldID: cfTitle, Value: m.LaborCategory},
		{CustomFieldID: cfBranch, Value: m.GroupID},
		{CustomFieldID: cfTeam, Value: TeamForGroup(m.GroupID)},
		{CustomFieldID: cfOrg, Value: m.GroupName},
	}

	if d.HireDate != "" {
		if v, err := FormatDate(d.HireDate); err == nil {
			customFields = append(customFields, CustomField{CustomFieldID: cfHireDate, Value: v})
		}
	}
	if d.BirthDate != "" {
		if v, err := FormatDate(d.BirthDate); err == nil {
			customFields = append(customFields, CustomField{CustomFieldID: cfBirthDate, Value: v})
		}
	}

	return UserPayload{
		UserType:     "user",
		IsArchived:   false,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		CustomFields: customFields,
	}
}
