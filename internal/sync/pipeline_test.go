package sync

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"employee-sync/internal/domain"
	"employee-sync/internal/ordered"
	"employee-sync/internal/pacing"
)

type fakeSource struct {
	groups    *ordered.Map[string]
	groupsErr error
	members   map[string][]domain.MembershipRecord
	memberErr map[string]error
	details   map[string]*domain.MemberDetail
	detailErr map[string]error
	closed    bool
}

func (f *fakeSource) ListQualifyingGroups(context.Context) (*ordered.Map[string], error) {
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return f.groups, nil
}

func (f *fakeSource) ListGroupMembers(_ context.Context, groupID, _ string) ([]domain.MembershipRecord, error) {
	if err := f.memberErr[groupID]; err != nil {
		return nil, err
	}
	return f.members[groupID], nil
}

func (f *fakeSource) GetMemberDetail(_ context.Context, employeeID string) (*domain.MemberDetail, error) {
	if err := f.detailErr[employeeID]; err != nil {
		return nil, err
	}
	return f.details[employeeID], nil
}

func (f *fakeSource) Close() { f.closed = true }

type fakeTarget struct {
	existing    map[string]struct{}
	existingErr error
	created     []string
	createdRecs []domain.MembershipRecord
	failIDs     map[string]bool
	closed      bool
}

func (f *fakeTarget) ExistingIDs(context.Context) (map[string]struct{}, error) {
	if f.existingErr != nil {
		return nil, f.existingErr
	}
	return f.existing, nil
}

func (f *fakeTarget) CreateUser(_ context.Context, m domain.MembershipRecord, d domain.MemberDetail) domain.CreationResult {
	f.created = append(f.created, d.EmployeeID)
	f.createdRecs = append(f.createdRecs, m)
	if f.failIDs[d.EmployeeID] {
		return domain.CreationResult{EmployeeID: d.EmployeeID, Name: d.FullName(), Error: "HTTP 400"}
	}
	return domain.CreationResult{EmployeeID: d.EmployeeID, Name: d.FullName(), Success: true}
}

func (f *fakeTarget) Close() { f.closed = true }

type fakeSnapshots struct {
	json map[string]any
	html map[string]string
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{json: map[string]any{}, html: map[string]string{}}
}

func (f *fakeSnapshots) SaveJSON(_ context.Context, v any, name string) { f.json[name] = v }
func (f *fakeSnapshots) SaveHTML(_ context.Context, html, name string) { f.html[name] = html }

type fakeMailer struct {
	sent int
}

func (f *fakeMailer) Send(context.Context, string, []string, string, string, string) (string, error) {
	f.sent++
	return "msg-1", nil
}

func activeDetail(id, first, last string) *domain.MemberDetail {
	return &domain.MemberDetail{
		EmployeeID: id, FirstName: first, LastName: last,
		Email: fmt.Sprintf("%s@example.com", id), HireDate: "2024-01-15T00:00:00",
		IsActive: true,
	}
}

// twoGroupSource has employee 20 in both groups; the first group wins.
func twoGroupSource() *fakeSource {
	groups := ordered.New[string]()
	groups.Set("2392.001", "Security Ops")
	groups.Set("4100.002", "Bakery North")
	return &fakeSource{
		groups: groups,
		members: map[string][]domain.MembershipRecord{
			"2392.001": {
				{EmployeeID: "10", GroupID: "2392.001", GroupName: "Security Ops", LaborCategory: "GUARD"},
				{EmployeeID: "20", GroupID: "2392.001", GroupName: "Security Ops", LaborCategory: "GUARD"},
			},
			"4100.002": {
				{EmployeeID: "20", GroupID: "4100.002", GroupName: "Bakery North", LaborCategory: "BAKER"},
				{EmployeeID: "30", GroupID: "4100.002", GroupName: "Bakery North", LaborCategory: "BAKER"},
			},
		},
		details: map[string]*domain.MemberDetail{
			"10": activeDetail("10", "Ada", "Nguyen"),
			"20": activeDetail("20", "Bob", "Reyes"),
			"30": activeDetail("30", "Cam", "Silva"),
		},
	}
}

func newPipeline(src *fakeSource, tgt *fakeTarget, snaps *fakeSnapshots, mail *fakeMailer, dryRun bool) *Pipeline {
	p := &Pipeline{
		Source:    src,
		Target:    tgt,
		Snapshots: snaps,
		GroupPace: pacing.None,
		ItemPace:  pacing.None,
		MailFrom:  "noreply@example.com",
		MailTo:    []string{"ops@example.com"},
		DryRun:    dryRun,
		Now:       func() time.Time { return time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC) },
	}
	if mail != nil {
		p.Mail = mail
	}
	return p
}

func TestPipelineLiveEndToEnd(t *testing.T) {
	src := twoGroupSource()
	tgt := &fakeTarget{existing: map[string]struct{}{"20": {}}}
	snaps := newFakeSnapshots()
	mail := &fakeMailer{}

	code := newPipeline(src, tgt, snaps, mail, false).Run(context.Background())
	if code != 0 {
		t.Fatalf("Run = %d, want 0", code)
	}

	if !reflect.DeepEqual(tgt.created, []string{"10", "30"}) {
		t.Errorf("created = %v, want [10 30]", tgt.created)
	}
	for _, name := range []string{
		"ne_ct_projects.json", "ne_workforce.json", "ne_employees.json",
		"ne_existing_cp_ids.json", "ne_employees_to_add.json", "ne_import_results.json",
	} {
		if _, ok := snaps.json[name]; !ok {
			t.Errorf("snapshot %s not written", name)
		}
	}
	if mail.sent != 1 {
		t.Errorf("report emails = %d, want 1", mail.sent)
	}
	if !src.closed || !tgt.closed {
		t.Error("clients not closed")
	}
}

func TestPipelineFirstSeenGroupWins(t *testing.T) {
	src := twoGroupSource()
	tgt := &fakeTarget{existing: map[string]struct{}{}}

	code := newPipeline(src, tgt, newFakeSnapshots(), nil, false).Run(context.Background())
	if code != 0 {
		t.Fatalf("Run = %d, want 0", code)
	}

	var rec *domain.MembershipRecord
	for i := range tgt.createdRecs {
		if tgt.createdRecs[i].EmployeeID == "20" {
			rec = &tgt.createdRecs[i]
		}
	}
	if rec == nil {
		t.Fatal("employee 20 not created")
	}
	if rec.GroupID != "2392.001" {
		t.Errorf("employee 20 attributed to %s, want first-seen group 2392.001", rec.GroupID)
	}
}

func TestPipelineLiveFailureExitsOne(t *testing.T) {
	src := twoGroupSource()
	tgt := &fakeTarget{existing: map[string]struct{}{}, failIDs: map[string]bool{"20": true}}

	code := newPipeline(src, tgt, newFakeSnapshots(), nil, false).Run(context.Background())
	if code != 1 {
		t.Errorf("Run = %d, want 1 when any creation fails", code)
	}
	if len(tgt.created) != 3 {
		t.Errorf("created %d users, want all 3 attempted despite the failure", len(tgt.created))
	}
}

func TestPipelineDryRun(t *testing.T) {
	src := twoGroupSource()
	tgt := &fakeTarget{existing: map[string]struct{}{"20": {}}}
	snaps := newFakeSnapshots()
	mail := &fakeMailer{}

	code := newPipeline(src, tgt, snaps, mail, true).Run(context.Background())
	if code != 0 {
		t.Fatalf("Run = %d, want 0", code)
	}
	if len(tgt.created) != 0 {
		t.Errorf("dry run created %d users", len(tgt.created))
	}
	if _, ok := snaps.json["ne_dry_run_preview.json"]; !ok {
		t.Error("dry-run preview snapshot not written")
	}
	if _, ok := snaps.json["ne_import_results.json"]; ok {
		t.Error("dry run should not write import results")
	}
	if _, ok := snaps.html["dry_run_email_preview.html"]; !ok {
		t.Error("dry-run email preview not persisted")
	}
	if mail.sent != 0 {
		t.Errorf("dry run sent %d emails", mail.sent)
	}
}

func TestPipelineDetailProblemsDropEmployee(t *testing.T) {
	src := twoGroupSource()
	src.details["10"].IsActive = false              // inactive
	src.details["20"] = nil                         // not found
	src.detailErr = map[string]error{"30": errors.New("boom")} // fetch error

	tgt := &fakeTarget{existing: map[string]struct{}{}}
	code := newPipeline(src, tgt, newFakeSnapshots(), nil, false).Run(context.Background())
	if code != 0 {
		t.Fatalf("Run = %d, want 0 on empty active set", code)
	}
	if len(tgt.created) != 0 {
		t.Errorf("created = %v, want none", tgt.created)
	}
}

func TestPipelineGroupFetchFailureAborts(t *testing.T) {
	src := twoGroupSource()
	src.memberErr = map[string]error{"4100.002": errors.New("query failed")}
	tgt := &fakeTarget{existing: map[string]struct{}{}}

	code := newPipeline(src, tgt, newFakeSnapshots(), nil, false).Run(context.Background())
	if code != 1 {
		t.Errorf("Run = %d, want 1 when a group roster query fails", code)
	}
	if len(tgt.created) != 0 {
		t.Error("no users should be created after an aborted phase 2")
	}
	if !src.closed || !tgt.closed {
		t.Error("clients not closed on abort")
	}
}

func TestPipelineEmptyGroupsExitsOne(t *testing.T) {
	src := &fakeSource{groups: ordered.New[string]()}
	tgt := &fakeTarget{}

	code := newPipeline(src, tgt, newFakeSnapshots(), nil, false).Run(context.Background())
	if code != 1 {
		t.Errorf("Run = %d, want 1 on zero qualifying groups", code)
	}
}

func TestPipelineEmptyMembershipExitsOne(t *testing.T) {
	groups := ordered.New[string]()
	groups.Set("2392.001", "Security Ops")
	src := &fakeSource{groups: groups, members: map[string][]domain.MembershipRecord{}}
	tgt := &fakeTarget{}

	code := newPipeline(src, tgt, newFakeSnapshots(), nil, false).Run(context.Background())
	if code != 1 {
		t.Errorf("Run = %d, want 1 on empty membership", code)
	}
}

func TestPipelineAllPresentExitsZero(t *testing.T) {
	src := twoGroupSource()
	tgt := &fakeTarget{existing: map[string]struct{}{"10": {}, "20": {}, "30": {}}}
	mail := &fakeMailer{}

	code := newPipeline(src, tgt, newFakeSnapshots(), mail, false).Run(context.Background())
	if code != 0 {
		t.Errorf("Run = %d, want 0 when every employee already exists", code)
	}
	if len(tgt.created) != 0 {
		t.Errorf("created = %v, want none", tgt.created)
	}
	if mail.sent != 0 {
		t.Error("no report expected on the all-present early exit")
	}
}

func TestPipelineFatalErrorClosesClients(t *testing.T) {
	src := &fakeSource{groupsErr: errors.New("source down")}
	tgt := &fakeTarget{}

	code := newPipeline(src, tgt, newFakeSnapshots(), nil, false).Run(context.Background())
	if code != 1 {
		t.Errorf("Run = %d, want 1", code)
	}
	if !src.closed || !tgt.closed {
		t.Error("clients not closed on fatal error")
	}
}
