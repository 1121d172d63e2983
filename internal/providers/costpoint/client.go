// Package costpoint implements the source HR system client: qualifying
// project discovery, per-project workforce rosters and single-employee
// detail lookups against the Costpoint query API.
package costpoint

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"employee-sync/internal/config"
	"employee-sync/internal/domain"
	"employee-sync/internal/httpx"
	"employee-sync/internal/ordered"
)

const (
	contentTypeJSON = "application/json"

	// Query template identifiers.
	queryProjects  = "pjmbasicrrexpt"
	queryWorkforce = "pjmworkrrexp"
	queryEmployee  = "ldmeinforrexpt"

	// Row-set identifiers inside query responses.
	rsProjects       = "PJMBASIC_PROJ"
	rsProjectNotes   = "PJMBASIC_PROJ_NOTES"
	rsWorkforceHdr   = "PJM_PROJEMPL_HDR"
	rsWorkforceChild = "PJM_PROJEMPL_CHILDTO"
	rsLaborCatGroup  = "PJM_PROJEMPL_LABCAT_PLCWKFRCE"
	rsLaborCatRow    = "PJM_PROJEMPLLABCAT_PLCWK"
	rsEmployee       = "LDMEINFO_EMPL"

	fieldEmployeeID = "PJM_PROJEMPLLABCAT_PLCWK_EMPL_ID"
	fieldLaborCat   = "PJM_PROJEMPLLABCAT_PLCWK_BILL_LAB_CAT_CD"

	activeStatusCode = "ACT"
	defaultFlagYes   = "Y"

	lookupTimeout = 30 * time.Second
)

type Client struct {
	cfg       config.SourceConfig
	auth      string
	http      *http.Client
	retry     httpx.RetryConfig
	targetURL string
}

func New(cfg config.SourceConfig) *Client {
	credentials := cfg.Username + ":" + cfg.Password
	return &Client{
		cfg:       cfg,
		auth:      "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials)),
		targetURL: cfg.FullURL(),
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
		retry: httpx.DefaultRetryConfig(),
	}
}

// Close releases pooled connections. Safe to call after a failed run.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

/* -------- Query envelope -------- */

type queryRequest struct {
	Filter queryFilter `json:"filter"`
}

type queryFilter struct {
	ID    string        `json:"id"`
	Where []whereClause `json:"where"`
}

type whereClause struct {
	RsWhere rsWhere `json:"rsWhere"`
}

type rsWhere struct {
	RsID       string        `json:"rsId"`
	Conditions []condition   `json:"conditions"`
	Children   []whereClause `json:"children"`
}

type condition struct {
	JoinWithParent string     `json:"joinWithParent"`
	Relations      []relation `json:"relations"`
}

type relation struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Value    string `json:"value"`
}

type queryResponse struct {
	Document struct {
		Rows []rowEnvelope `json:"rows"`
	} `json:"document"`
}

type rowEnvelope struct {
	Row row `json:"row"`
}

type row struct {
	RsID     string         `json:"rsId"`
	Data     map[string]any `json:"data"`
	Children []rowEnvelope  `json:"children"`
}

func (c *Client) post(ctx context.Context, payload queryRequest, out *queryResponse) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return httpx.DoJSON(
		ctx,
		c.http,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.targetURL, bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Authorization", c.auth)
			r.Header.Set("Content-Type", contentTypeJSON)
			return r, nil
		},
		out,
		c.retry,
	)
}

/* -------- API -------- */

// ListQualifyingGroups returns id→name for every active, chargeable
// project whose notes carry the configured qualifying tag. Order follows
// the response's row order.
func (c *Client) ListQualifyingGroups(ctx context.Context) (*ordered.Map[string], error) {
	payload := queryRequest{Filter: queryFilter{
		ID: queryProjects,
		Where: []whereClause{{RsWhere: rsWhere{
			RsID: rsProjects,
			Conditions: []condition{{
				JoinWithParent: "N",
				Relations: []relation{
					{Name: "ACTIVE_FL", Relation: "=", Value: "Y"},
					{Name: "ALLOW_CHARGES_FL", Relation: "=", Value: "Y"},
				},
			}},
			Children: []whereClause{},
		}}},
	}}

	var resp queryResponse
	if err := c.post(ctx, payload, &resp); err != nil {
		return nil, fmt.Errorf("costpoint: list qualifying groups failed: %w", err)
	}

	groups := ordered.New[string]()
	for _, env := range resp.Document.Rows {
		r := env.Row
		if r.RsID != rsProjects {
			continue
		}
		projID := str(r.Data, "PROJ_ID")
		projName := str(r.Data, "PROJ_NAME")
		for _, child := range r.Children {
			cr := child.Row
			if cr.RsID != rsProjectNotes {
				continue
			}
			if str(cr.Data, "NOTES") == c.cfg.FilterNotesValue {
				groups.Set(projID, projName)
			}
		}
	}
	return groups, nil
}

// ListGroupMembers returns one MembershipRecord per distinct employee on
// the project, taking the row flagged as the employee's default
// assignment. Employees without a default-flagged row are excluded.
func (c *Client) ListGroupMembers(ctx context.Context, groupID, groupName string) ([]domain.MembershipRecord, error) {
	payload := queryRequest{Filter: queryFilter{
		ID: queryWorkforce,
		Where: []whereClause{{RsWhere: rsWhere{
			RsID: rsWorkforceHdr,
			Conditions: []condition{{
				JoinWithParent: "N",
				Relations: []relation{
					{Name: "PROJ_ID", Relation: "=", Value: groupID},
				},
			}},
			Children: []whereClause{
				{RsWhere: rsWhere{RsID: rsWorkforceChild, Conditions: []condition{}, Children: []whereClause{}}},
				{RsWhere: rsWhere{RsID: rsLaborCatGroup, Conditions: []condition{}, Children: []whereClause{}}},
			},
		}}},
	}}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var resp queryResponse
	if err := c.post(ctx, payload, &resp); err != nil {
		return nil, fmt.Errorf("costpoint: list members of %s failed: %w", groupID, err)
	}

	// Group labor-category rows per employee, keeping first-seen order.
	rowsByEmployee := ordered.New[[]map[string]any]()
	for _, env := range resp.Document.Rows {
		r := env.Row
		if r.RsID != rsWorkforceHdr {
			continue
		}
		for _, child := range r.Children {
			cr := child.Row
			if cr.RsID != rsLaborCatGroup {
				continue
			}
			for _, grandchild := range cr.Children {
				gr := grandchild.Row
				if gr.RsID != rsLaborCatRow {
					continue
				}
				emplID := str(gr.Data, fieldEmployeeID)
				if emplID == "" {
					continue
				}
				rows, _ := rowsByEmployee.Get(emplID)
				rowsByEmployee.Set(emplID, append(rows, gr.Data))
			}
		}
	}

	var records []domain.MembershipRecord
	for _, emplID := range rowsByEmployee.Keys() {
		rows, _ := rowsByEmployee.Get(emplID)
		for _, data := range rows {
			if str(data, "DFLT_FL") != defaultFlagYes {
				continue
			}
			records = append(records, domain.MembershipRecord{
				EmployeeID:    emplID,
				GroupID:       groupID,
				GroupName:     groupName,
				LaborCategory: str(data, fieldLaborCat),
			})
			break
		}
	}
	return records, nil
}

// GetMemberDetail fetches one employee's profile. A nil detail with a nil
// error means the employee does not exist in the source system.
func (c *Client) GetMemberDetail(ctx context.Context, employeeID string) (*domain.MemberDetail, error) {
	payload := queryRequest{Filter: queryFilter{
		ID: queryEmployee,
		Where: []whereClause{{RsWhere: rsWhere{
			RsID: rsEmployee,
			Conditions: []condition{{
				JoinWithParent: "N",
				Relations: []relation{
					{Name: "EMPL_ID", Relation: "=", Value: employeeID},
				},
			}},
			Children: []whereClause{},
		}}},
	}}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var resp queryResponse
	if err := c.post(ctx, payload, &resp); err != nil {
		return nil, fmt.Errorf("costpoint: employee %s lookup failed: %w", employeeID, err)
	}

	rows := resp.Document.Rows
	if len(rows) == 0 {
		return nil, nil
	}

	data := rows[0].Row.Data
	return &domain.MemberDetail{
		EmployeeID: employeeID,
		FirstName:  str(data, "FIRST_NAME"),
		LastName:   str(data, "LAST_NAME"),
		Email:      str(data, "HOME_EMAIL_ID"),
		HireDate:   str(data, "ORIG_HIRE_DT"),
		BirthDate:  str(data, "BIRTH_DT"),
		IsActive:   str(data, "S_EMPL_STATUS_CD") == activeStatusCode,
	}, nil
}

func str(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
