package input

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidInput wraps every failure of the boundary parse.
var ErrInvalidInput = errors.New("invalid input")

// TriggerSource is the kind of event that started a run.
type TriggerSource string

const (
	TriggerInbound  TriggerSource = "inbound"
	TriggerOutbound TriggerSource = "outbound"
)

// Record is the canonical, normalized trigger payload. It is created once at the
// boundary and treated as immutable afterwards.
type Record struct {
	Meta         Meta         `json:"meta"`
	Organization Organization `json:"organization"`
	Contact      Contact      `json:"contact"`
	Notes        Notes        `json:"notes"`
	Routing      Routing      `json:"routing"`
}

type Meta struct {
	TriggerSource      TriggerSource `json:"trigger_source"`
	SubmittedAt        string        `json:"submitted_at"`
	RunID              *string       `json:"run_id,omitempty"`
	RequestedMeetingAt *string       `json:"requested_meeting_at,omitempty"`
	Timezone           *string       `json:"timezone,omitempty"`
}

// Organization keeps absent and present-but-empty apart; run identity depends on it.
type Organization struct {
	Name    *string `json:"name"`
	Website *string `json:"website"`
	Domain  *string `json:"domain"`
}

type Contact struct {
	FullName    string `json:"full_name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// DisplayName returns the best available human name for the contact.
func (c Contact) DisplayName() string {
	if n := strings.TrimSpace(c.FullName); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

type Notes struct {
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`
}

type Routing struct {
	CRMTarget       string   `json:"crm_target,omitempty"`
	EmailRecipients []string `json:"email_recipients,omitempty"`
	MotionWorkspace string   `json:"motion_workspace,omitempty"`
}

// OrgName returns the organization name or "" when absent.
func (r Record) OrgName() string { return deref(r.Organization.Name) }

// OrgWebsite returns the organization website or "" when absent.
func (r Record) OrgWebsite() string { return deref(r.Organization.Website) }

// OrgDomain returns the organization domain or "" when absent.
func (r Record) OrgDomain() string { return deref(r.Organization.Domain) }

// MeetingTime parses requested_meeting_at. ok is false when it is absent or malformed.
func (r Record) MeetingTime() (time.Time, bool) {
	if r.Meta.RequestedMeetingAt == nil {
		return time.Time{}, false
	}
	t, err := ParseTimestamp(*r.Meta.RequestedMeetingAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Location resolves the record's timezone, falling back to UTC.
func (r Record) Location() *time.Location {
	if r.Meta.Timezone == nil || strings.TrimSpace(*r.Meta.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.TrimSpace(*r.Meta.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// StringPtr returns a pointer to s. Handy for building records in code and tests.
func StringPtr(s string) *string { return &s }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
