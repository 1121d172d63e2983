// Package report renders the run summary as HTML and plain text and
// delivers it: live runs are emailed, dry runs persist the HTML preview.
package report

import (
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"employee-sync/internal/domain"
	"employee-sync/internal/events"
	"employee-sync/internal/ordered"
	"employee-sync/internal/providers/connecteam"
)

// Input is everything the report consumes from the pipeline.
type Input struct {
	Membership *ordered.Map[domain.MembershipRecord]
	Details    *ordered.Map[domain.MemberDetail]
	Missing    []string
	Results    []domain.CreationResult // nil in dry-run mode
	DryRun     bool
	RunTime    time.Time
}

// Sender delivers a rendered report.
type Sender interface {
	Send(ctx context.Context, from string, to []string, subject, textBody, htmlBody string) (string, error)
}

// HTMLStore persists the dry-run preview.
type HTMLStore interface {
	SaveHTML(ctx context.Context, html, name string)
}

// Delivery holds the addressing for live-mode email.
type Delivery struct {
	From string
	To   []string
}

const previewObjectName = "dry_run_email_preview.html"

type row struct {
	EmployeeID    string
	Name          string
	Email         string
	GroupID       string
	GroupName     string
	Team          string
	LaborCategory string
	HireDate      string
	HasStatus     bool
	Succeeded     bool
}

type view struct {
	DryRun       bool
	Total        int
	GroupCount   int
	GroupIDs     string
	SuccessCount int
	FailCount    int
	Rows         []row
	RunDate      string
}

func buildView(in Input) view {
	resultByID := make(map[string]bool, len(in.Results))
	for _, r := range in.Results {
		resultByID[r.EmployeeID] = r.Success
	}

	groupSet := make(map[string]struct{})
	rows := make([]row, 0, len(in.Missing))
	for _, eid := range in.Missing {
		m, _ := in.Membership.Get(eid)
		d, _ := in.Details.Get(eid)
		groupSet[m.GroupID] = struct{}{}

		email := d.Email
		if email == "" {
			email = "—"
		}
		hireDate := "—"
		if d.HireDate != "" {
			if v, err := connecteam.FormatDate(d.HireDate); err == nil {
				hireDate = v
			}
		}

		rows = append(rows, row{
			EmployeeID:    eid,
			Name:          d.FullName(),
			Email:         email,
			GroupID:       m.GroupID,
			GroupName:     m.GroupName,
			Team:          connecteam.TeamForGroup(m.GroupID),
			LaborCategory: m.LaborCategory,
			HireDate:      hireDate,
			HasStatus:     !in.DryRun,
			Succeeded:     resultByID[eid],
		})
	}

	groupIDs := make([]string, 0, len(groupSet))
	for id := range groupSet {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	success := 0
	for _, r := range in.Results {
		if r.Success {
			success++
		}
	}

	return view{
		DryRun:       in.DryRun,
		Total:        len(in.Missing),
		GroupCount:   len(groupSet),
		GroupIDs:     strings.Join(groupIDs, ", "),
		SuccessCount: success,
		FailCount:    len(in.Results) - success,
		Rows:         rows,
		RunDate:      in.RunTime.Format("Monday, January 2, 2006 at 3:04 PM"),
	}
}

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family:Arial,sans-serif;font-size:14px;color:#333;margin:0;padding:0;background:#f5f5f5;">
<div style="max-width:960px;margin:20px auto;background:#fff;border-radius:6px;overflow:hidden;">

  <div style="background:{{if .DryRun}}#2980b9{{else}}#27ae60{{end}};padding:24px 32px;">
    {{if .DryRun -}}
    <h1 style="margin:0;color:#fff;font-size:20px;">&#128269; Dry Run Preview: New Employees Pending Import</h1>
    <p style="margin:8px 0 0;color:rgba(255,255,255,0.85);font-size:13px;">No changes have been made. This is a preview only.</p>
    {{- else -}}
    <h1 style="margin:0;color:#fff;font-size:20px;">&#10003; New Employees Imported</h1>
    <p style="margin:8px 0 0;color:rgba(255,255,255,0.85);font-size:13px;"><strong>{{.SuccessCount}}</strong> created successfully{{if .FailCount}} &nbsp;|&nbsp; <strong style="color:#e74c3c;">{{.FailCount}} failed</strong>{{end}}</p>
    {{- end}}
  </div>

  <div style="display:flex;gap:16px;padding:24px 32px;background:#f8fffe;">
    <div style="flex:1;border:1px solid #d5e8d4;border-radius:4px;padding:16px;text-align:center;">
      <div style="font-size:28px;font-weight:bold;">{{.Total}}</div>
      <div style="font-size:12px;color:#777;">Employees {{if .DryRun}}to Import{{else}}Processed{{end}}</div>
    </div>
    <div style="flex:1;border:1px solid #d5e8d4;border-radius:4px;padding:16px;text-align:center;">
      <div style="font-size:28px;font-weight:bold;">{{.GroupCount}}</div>
      <div style="font-size:12px;color:#777;">Projects Represented</div>
    </div>
    <div style="flex:1;border:1px solid #d5e8d4;border-radius:4px;padding:16px;text-align:center;">
      <div style="font-size:14px;font-weight:bold;color:#555;">{{.GroupIDs}}</div>
      <div style="font-size:12px;color:#777;">Project IDs</div>
    </div>
  </div>

  <div style="padding:24px 32px;">
    <table style="width:100%;border-collapse:collapse;font-size:13px;">
      <thead>
        <tr style="background:#2c3e50;color:#fff;">
          <th style="padding:10px 12px;text-align:left;">Employee ID</th>
          <th style="padding:10px 12px;text-align:left;">Name</th>
          <th style="padding:10px 12px;text-align:left;">Email</th>
          <th style="padding:10px 12px;text-align:left;">Project ID</th>
          <th style="padding:10px 12px;text-align:left;">Project Name</th>
          <th style="padding:10px 12px;text-align:left;">Team</th>
          <th style="padding:10px 12px;text-align:left;">Labor Cat</th>
          <th style="padding:10px 12px;text-align:left;">Hire Date</th>
          {{if not .DryRun}}<th style="padding:10px 12px;text-align:center;">Status</th>{{end}}
        </tr>
      </thead>
      <tbody>
      {{range .Rows}}<tr>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;font-family:monospace;">{{.EmployeeID}}</td>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;">{{.Name}}</td>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;color:#555;">{{.Email}}</td>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;font-family:monospace;">{{.GroupID}}</td>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;">{{.GroupName}}</td>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;">{{.Team}}</td>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;font-family:monospace;">{{.LaborCategory}}</td>
        <td style="padding:8px 12px;border-bottom:1px solid #eee;">{{.HireDate}}</td>
        {{if .HasStatus}}<td style="padding:8px 12px;border-bottom:1px solid #eee;text-align:center;">{{if .Succeeded}}<span style="background:#27ae60;color:#fff;padding:2px 8px;border-radius:3px;font-size:11px;">&#10003; Created</span>{{else}}<span style="background:#e74c3c;color:#fff;padding:2px 8px;border-radius:3px;font-size:11px;">&#10007; Failed</span>{{end}}</td>{{end}}
      </tr>
      {{end}}</tbody>
    </table>
  </div>

  <div style="padding:16px 32px;background:#ecf0f1;font-size:11px;color:#7f8c8d;text-align:center;">
    Generated by employee-sync &bull; {{.RunDate}}{{if .DryRun}} &bull; <strong>DRY RUN — no records were created</strong>{{end}}
  </div>

</div>
</body>
</html>
`))

// HTML renders the report document.
func HTML(in Input) (string, error) {
	var b strings.Builder
	if err := htmlTmpl.Execute(&b, buildView(in)); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}

// Text renders the plain-text body.
func Text(in Input) string {
	v := buildView(in)

	mode := "IMPORT COMPLETE"
	if v.DryRun {
		mode = "DRY RUN PREVIEW"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New Employees Sync — %s\n", mode)
	fmt.Fprintf(&b, "Total: %d employees | %d projects\n\n", v.Total, v.GroupCount)

	header := fmt.Sprintf("%-10s %-28s %-14s %-20s %-12s %-12s", "ID", "Name", "Project", "Team", "Labor Cat", "Hire Date")
	width := 86
	if !v.DryRun {
		header += " Status"
		width = 95
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("-", width) + "\n")

	for _, r := range v.Rows {
		line := fmt.Sprintf("%-10s %-28s %-14s %-20s %-12s %-12s",
			r.EmployeeID, r.Name, r.GroupID, r.Team, r.LaborCategory, r.HireDate)
		if !v.DryRun {
			status := "FAILED"
			if r.Succeeded {
				status = "Created"
			}
			line += " " + status
		}
		b.WriteString(line + "\n")
	}

	if v.DryRun {
		b.WriteString("\nNo changes have been made. This is a preview only.\n")
	}
	return b.String()
}

// Subject is the live-mode email subject line.
func Subject(in Input) string {
	v := buildView(in)
	return fmt.Sprintf("[Connecteam] New Employees Import Complete — %d employees | %s",
		v.Total, v.GroupIDs)
}

// Deliver renders the report and ships it. Dry runs persist the HTML
// preview to the snapshot store; live runs email both bodies. Missing
// recipients skip delivery with an event, not an error.
func Deliver(ctx context.Context, in Input, d Delivery, store HTMLStore, mail Sender, sink *events.Sink) error {
	html, err := HTML(in)
	if err != nil {
		return err
	}

	if in.DryRun {
		store.SaveHTML(ctx, html, previewObjectName)
		sink.Info("dry_run_report_saved", "dry_run_report_saved", "name", previewObjectName)
		return nil
	}

	if mail == nil || len(d.To) == 0 {
		sink.Info("no_report_recipients_configured", "no_report_recipients_configured")
		return nil
	}

	id, err := mail.Send(ctx, d.From, d.To, Subject(in), Text(in), html)
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	sink.Info("report_sent", "report_sent", "message_id", id, "recipients", d.To)
	return nil
}
