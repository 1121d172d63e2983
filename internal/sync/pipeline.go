// Package sync runs the six-phase reconciliation that creates target-system
// accounts for active employees on qualifying projects who do not exist in
// the target system yet.
package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"employee-sync/internal/domain"
	"employee-sync/internal/events"
	"employee-sync/internal/ordered"
	"employee-sync/internal/pacing"
	"employee-sync/internal/providers/connecteam"
	"employee-sync/internal/report"
)

// SourceClient is the capability the pipeline needs from the HR system of
// record.
type SourceClient interface {
	ListQualifyingGroups(ctx context.Context) (*ordered.Map[string], error)
	ListGroupMembers(ctx context.Context, groupID, groupName string) ([]domain.MembershipRecord, error)
	// GetMemberDetail returns (nil, nil) when the employee does not exist.
	GetMemberDetail(ctx context.Context, employeeID string) (*domain.MemberDetail, error)
	Close()
}

// TargetClient is the capability the pipeline needs from the
// workforce-management system.
type TargetClient interface {
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	CreateUser(ctx context.Context, m domain.MembershipRecord, d domain.MemberDetail) domain.CreationResult
	Close()
}

// SnapshotStore persists per-phase audit snapshots. Best-effort: the
// pipeline never checks whether a write stuck.
type SnapshotStore interface {
	SaveJSON(ctx context.Context, v any, name string)
	SaveHTML(ctx context.Context, html, name string)
}

// Pipeline wires one run's collaborators. Execution is strictly
// sequential: both external APIs are rate limited, so there is no fan-out
// across groups, employees or creation requests.
type Pipeline struct {
	Source    SourceClient
	Target    TargetClient
	Snapshots SnapshotStore
	Events    *events.Sink

	// GroupPace spaces the per-group roster queries of phase 2; ItemPace
	// spaces the per-employee calls of phases 3 and 6.
	GroupPace pacing.Pacer
	ItemPace  pacing.Pacer

	Mail     report.Sender // nil disables delivery
	MailFrom string
	MailTo   []string

	DryRun bool
	Now    func() time.Time
}

// Run executes the full pipeline and returns the process exit status:
// 0 for success (including the defined early exits), 1 for failure.
// Both client sessions are released no matter how the run ends.
func (p *Pipeline) Run(ctx context.Context) int {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.GroupPace == nil {
		p.GroupPace = pacing.Fixed(500 * time.Millisecond)
	}
	if p.ItemPace == nil {
		p.ItemPace = pacing.Fixed(300 * time.Millisecond)
	}

	runID := p.Now().Format("20060102_150405")
	p.Events.Info("pipeline_starting", "pipeline_starting",
		"run_id", runID, "dry_run", p.DryRun)

	defer p.Source.Close()
	defer p.Target.Close()

	code, err := p.run(ctx, runID)
	if err != nil {
		p.Events.Error("pipeline_fatal_error", "pipeline_fatal_error",
			"run_id", runID, "error", err.Error())
		return 1
	}
	return code
}

func (p *Pipeline) run(ctx context.Context, runID string) (int, error) {
	groups, err := p.phaseGroups(ctx)
	if err != nil {
		return 1, err
	}
	if groups.Len() == 0 {
		p.Events.Error("no_qualifying_groups_found", "no_qualifying_groups_found")
		return 1, nil
	}

	membership, err := p.phaseMembership(ctx, groups)
	if err != nil {
		return 1, err
	}
	if membership.Len() == 0 {
		p.Events.Error("no_membership_records", "no_membership_records")
		return 1, nil
	}

	details, err := p.phaseDetails(ctx, membership)
	if err != nil {
		return 1, err
	}
	if details.Len() == 0 {
		p.Events.Info("no_active_employees_in_workforce", "no_active_employees_in_workforce")
		return 0, nil
	}

	existing, err := p.phaseExisting(ctx)
	if err != nil {
		return 1, err
	}

	missing := p.phaseMissing(ctx, details, existing)
	if len(missing) == 0 {
		p.Events.Info("all_employees_already_present", "all_employees_already_present")
		return 0, nil
	}

	results, err := p.phaseCreate(ctx, membership, details, missing)
	if err != nil {
		return 1, err
	}

	p.deliverReport(ctx, report.Input{
		Membership: membership,
		Details:    details,
		Missing:    missing,
		Results:    results,
		DryRun:     p.DryRun,
		RunTime:    p.Now(),
	})

	if !p.DryRun {
		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}
		if failed > 0 {
			p.Events.Error("pipeline_complete_with_failures", "pipeline_complete_with_failures",
				"run_id", runID, "failed", failed)
			return 1, nil
		}
	}

	p.Events.Success("pipeline_complete", "pipeline_complete",
		"run_id", runID, "dry_run", p.DryRun)
	return 0, nil
}

// Phase 1: qualifying group discovery.
func (p *Pipeline) phaseGroups(ctx context.Context) (*ordered.Map[string], error) {
	p.Events.Info("phase_1_starting", "phase_1_starting")

	groups, err := p.Source.ListQualifyingGroups(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make([]domain.Group, 0, groups.Len())
	for _, id := range groups.Keys() {
		name, _ := groups.Get(id)
		snapshot = append(snapshot, domain.Group{ID: id, Name: name})
	}
	p.Snapshots.SaveJSON(ctx, snapshot, "ne_ct_projects.json")

	p.Events.Info("phase_1_complete", "phase_1_complete", "count", groups.Len())
	return groups, nil
}

// Phase 2: membership enumeration with first-seen-wins dedup. A single
// group's query failure aborts the run: one group's roster is foundational
// in a way one employee's profile is not.
func (p *Pipeline) phaseMembership(ctx context.Context, groups *ordered.Map[string]) (*ordered.Map[domain.MembershipRecord], error) {
	p.Events.Info("phase_2_starting", "phase_2_starting")

	membership := ordered.New[domain.MembershipRecord]()
	for _, groupID := range groups.Keys() {
		if err := p.GroupPace.Wait(ctx); err != nil {
			return nil, err
		}
		groupName, _ := groups.Get(groupID)
		records, err := p.Source.ListGroupMembers(ctx, groupID, groupName)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			membership.SetIfAbsent(rec.EmployeeID, rec)
		}
	}

	p.Snapshots.SaveJSON(ctx, membership.Values(), "ne_workforce.json")
	p.Events.Info("phase_2_complete", "phase_2_complete", "unique_employees", membership.Len())
	return membership, nil
}

// Phase 3: detail resolution and activity filter. Per-employee problems
// drop that employee and never abort the loop.
func (p *Pipeline) phaseDetails(ctx context.Context, membership *ordered.Map[domain.MembershipRecord]) (*ordered.Map[domain.MemberDetail], error) {
	p.Events.Info("phase_3_starting", "phase_3_starting")

	ids := membership.Keys()
	details := ordered.New[domain.MemberDetail]()
	for i, employeeID := range ids {
		if err := p.ItemPace.Wait(ctx); err != nil {
			return nil, err
		}
		p.Events.Info("fetching_employee", "fetching_employee",
			"employee_id", employeeID, "progress", fmt.Sprintf("%d/%d", i+1, len(ids)))

		detail, err := p.Source.GetMemberDetail(ctx, employeeID)
		switch {
		case err != nil:
			p.Events.Error("employee_fetch_failed", "employee_fetch_failed",
				"employee_id", employeeID, "error", err.Error())
		case detail == nil:
			p.Events.Error("employee_not_found", "employee_not_found",
				"employee_id", employeeID)
		case !detail.IsActive:
			p.Events.Info("skipping_inactive_employee", "skipping_inactive_employee",
				"employee_id", employeeID, "name", detail.FullName())
		default:
			details.Set(employeeID, *detail)
		}
	}

	p.Snapshots.SaveJSON(ctx, details.Values(), "ne_employees.json")
	p.Events.Info("phase_3_complete", "phase_3_complete", "active_employees", details.Len())
	return details, nil
}

// Phase 4: existing identity enumeration.
func (p *Pipeline) phaseExisting(ctx context.Context) (map[string]struct{}, error) {
	p.Events.Info("phase_4_starting", "phase_4_starting")

	existing, err := p.Target.ExistingIDs(ctx)
	if err != nil {
		return nil, err
	}

	sortedIDs := make([]string, 0, len(existing))
	for id := range existing {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)
	p.Snapshots.SaveJSON(ctx, sortedIDs, "ne_existing_cp_ids.json")

	p.Events.Info("phase_4_complete", "phase_4_complete", "existing_count", len(existing))
	return existing, nil
}

// Phase 5: missing-set computation.
func (p *Pipeline) phaseMissing(ctx context.Context, details *ordered.Map[domain.MemberDetail], existing map[string]struct{}) []string {
	p.Events.Info("phase_5_starting", "phase_5_starting")

	missing := Missing(details, existing)
	p.Snapshots.SaveJSON(ctx, missing, "ne_employees_to_add.json")

	p.Events.Info("phase_5_complete", "phase_5_complete",
		"missing_count", len(missing), "employee_ids", missing)
	return missing
}

// Phase 6: creation, or a dry-run preview. In live mode every missing
// employee is attempted exactly once; a failure is captured in its result
// and the loop continues.
func (p *Pipeline) phaseCreate(
	ctx context.Context,
	membership *ordered.Map[domain.MembershipRecord],
	details *ordered.Map[domain.MemberDetail],
	missing []string,
) ([]domain.CreationResult, error) {
	p.Events.Info("phase_6_starting", "phase_6_starting",
		"dry_run", p.DryRun, "count", len(missing))

	if p.DryRun {
		preview := make([]connecteam.PreviewEntry, 0, len(missing))
		for _, employeeID := range missing {
			m, _ := membership.Get(employeeID)
			d, _ := details.Get(employeeID)
			p.warnMissingEmail(d)
			preview = append(preview, connecteam.PreviewEntry{
				EmployeeID: employeeID,
				Name:       d.FullName(),
				Payload:    connecteam.BuildUserPayload(m, d),
			})
		}
		p.Snapshots.SaveJSON(ctx, preview, "ne_dry_run_preview.json")
		p.Events.Info("phase_6_dry_run_complete", "phase_6_dry_run_complete",
			"would_create", len(preview))
		return nil, nil
	}

	results := make([]domain.CreationResult, 0, len(missing))
	for i, employeeID := range missing {
		if err := p.ItemPace.Wait(ctx); err != nil {
			return nil, err
		}
		m, _ := membership.Get(employeeID)
		d, _ := details.Get(employeeID)
		p.Events.Info("creating_user", "creating_user",
			"employee_id", employeeID, "progress", fmt.Sprintf("%d/%d", i+1, len(missing)))
		p.warnMissingEmail(d)

		results = append(results, p.Target.CreateUser(ctx, m, d))
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	p.Snapshots.SaveJSON(ctx, results, "ne_import_results.json")
	p.Events.Info("phase_6_complete", "phase_6_complete",
		"added", succeeded, "failed", len(results)-succeeded, "total", len(results))
	return results, nil
}

func (p *Pipeline) warnMissingEmail(d domain.MemberDetail) {
	if d.Email == "" {
		p.Events.Info("employee_missing_email", "employee_missing_email",
			"employee_id", d.EmployeeID)
	}
}

func (p *Pipeline) deliverReport(ctx context.Context, in report.Input) {
	err := report.Deliver(ctx, in, report.Delivery{
		From: p.MailFrom,
		To:   p.MailTo,
	}, p.Snapshots, p.Mail, p.Events)
	if err != nil {
		p.Events.Error("report_delivery_failed", "report_delivery_failed", "error", err.Error())
	}
}
