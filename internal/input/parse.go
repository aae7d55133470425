package input

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NormalizeTriggerSource maps free-form trigger labels onto inbound/outbound.
// Unknown labels normalize to "".
func NormalizeTriggerSource(s string) TriggerSource {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inbound", "form", "webhook":
		return TriggerInbound
	case "outbound", "campaign", "list", "batch":
		return TriggerOutbound
	default:
		return ""
	}
}

// ParseTimestamp accepts RFC 3339 timestamps with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// Parse decodes a raw trigger payload and normalizes it into a Record.
// Internal code never re-validates a Record after this point.
func Parse(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode payload: %v", ErrInvalidInput, err)
	}
	return Normalize(rec)
}

// Normalize trims and checks a decoded record.
func Normalize(rec Record) (Record, error) {
	src := NormalizeTriggerSource(string(rec.Meta.TriggerSource))
	if src == "" {
		return Record{}, fmt.Errorf("%w: unknown trigger_source %q", ErrInvalidInput, rec.Meta.TriggerSource)
	}
	rec.Meta.TriggerSource = src

	rec.Meta.SubmittedAt = strings.TrimSpace(rec.Meta.SubmittedAt)
	if _, err := ParseTimestamp(rec.Meta.SubmittedAt); err != nil {
		return Record{}, fmt.Errorf("%w: submitted_at: %v", ErrInvalidInput, err)
	}
	rec.Meta.RunID = trimOptional(rec.Meta.RunID)
	rec.Meta.RequestedMeetingAt = trimOptional(rec.Meta.RequestedMeetingAt)
	rec.Meta.Timezone = trimOptional(rec.Meta.Timezone)

	rec.Organization.Name = trimOptional(rec.Organization.Name)
	rec.Organization.Website = trimOptional(rec.Organization.Website)
	rec.Organization.Domain = trimOptional(rec.Organization.Domain)
	if rec.Organization.Name == nil && rec.Organization.Website == nil {
		return Record{}, fmt.Errorf("%w: organization requires a name or a website", ErrInvalidInput)
	}

	rec.Contact.FullName = strings.TrimSpace(rec.Contact.FullName)
	rec.Contact.FirstName = strings.TrimSpace(rec.Contact.FirstName)
	rec.Contact.LastName = strings.TrimSpace(rec.Contact.LastName)
	rec.Contact.Title = strings.TrimSpace(rec.Contact.Title)
	rec.Contact.Phone = strings.TrimSpace(rec.Contact.Phone)
	rec.Contact.LinkedInURL = strings.TrimSpace(rec.Contact.LinkedInURL)
	rec.Contact.Email = strings.ToLower(strings.TrimSpace(rec.Contact.Email))
	if rec.Contact.Email != "" && !strings.Contains(rec.Contact.Email, "@") {
		return Record{}, fmt.Errorf("%w: contact email %q is malformed", ErrInvalidInput, rec.Contact.Email)
	}

	rec.Notes.Text = strings.TrimSpace(rec.Notes.Text)
	rec.Notes.Source = strings.TrimSpace(rec.Notes.Source)

	rec.Routing.CRMTarget = strings.TrimSpace(rec.Routing.CRMTarget)
	rec.Routing.MotionWorkspace = strings.TrimSpace(rec.Routing.MotionWorkspace)
	recipients := make([]string, 0, len(rec.Routing.EmailRecipients))
	for _, r := range rec.Routing.EmailRecipients {
		r = strings.TrimSpace(r)
		if r != "" {
			recipients = append(recipients, r)
		}
	}
	rec.Routing.EmailRecipients = recipients

	return rec, nil
}

// trimOptional trims a present value and turns a blank one into absent.
func trimOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
