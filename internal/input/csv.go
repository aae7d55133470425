package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// Lead list columns. Header matching is case-insensitive.
const (
	colOrgName         = "organization_name"
	colWebsite         = "website"
	colDomain          = "domain"
	colContactName     = "contact_name"
	colContactEmail    = "contact_email"
	colContactTitle    = "contact_title"
	colNotes           = "notes"
	colCRMTarget       = "crm_target"
	colEmailRecipients = "email_recipients"
	colMotionWorkspace = "motion_workspace"
)

// ReadLeadsCSV reads an outbound lead list. Every row becomes an outbound Record
// submitted at now.
func ReadLeadsCSV(r io.Reader, now time.Time) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := headerIndex(header)
	if _, ok := idx[colOrgName]; !ok {
		if _, ok := idx[colWebsite]; !ok {
			return nil, fmt.Errorf("missing required column %q or %q", colOrgName, colWebsite)
		}
	}

	var out []Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		rec, err := fromLeadRow(idx, row, now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// FromLeadRow converts a single CSV row using the given header.
func FromLeadRow(header, row []string, now time.Time) (Record, error) {
	return fromLeadRow(headerIndex(header), row, now)
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func fromLeadRow(idx map[string]int, row []string, now time.Time) (Record, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	optional := func(col string) *string {
		if v := get(col); v != "" {
			return &v
		}
		return nil
	}

	var recipients []string
	for _, r := range strings.Split(get(colEmailRecipients), ";") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}

	rec := Record{
		Meta: Meta{
			TriggerSource: TriggerOutbound,
			SubmittedAt:   now.UTC().Format(time.RFC3339),
		},
		Organization: Organization{
			Name:    optional(colOrgName),
			Website: optional(colWebsite),
			Domain:  optional(colDomain),
		},
		Contact: Contact{
			FullName: get(colContactName),
			Email:    get(colContactEmail),
			Title:    get(colContactTitle),
		},
		Notes: Notes{Text: get(colNotes), Source: "lead_list"},
		Routing: Routing{
			CRMTarget:       get(colCRMTarget),
			EmailRecipients: recipients,
			MotionWorkspace: get(colMotionWorkspace),
		},
	}
	return Normalize(rec)
}
