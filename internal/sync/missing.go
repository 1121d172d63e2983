package sync

import (
	"employee-sync/internal/domain"
	"employee-sync/internal/ordered"
)

// Missing returns the employee ids present in details but absent from
// existing, preserving details' insertion order.
func Missing(details *ordered.Map[domain.MemberDetail], existing map[string]struct{}) []string {
	missing := []string{}
	for _, eid := range details.Keys() {
		if _, ok := existing[eid]; !ok {
			missing = append(missing, eid)
		}
	}
	return missing
}
