package input_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/longhornrumble/dealprep/internal/input"
)

func TestNormalizeTriggerSource(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want input.TriggerSource
	}{
		{name: "inbound", in: "inbound", want: input.TriggerInbound},
		{name: "inbound mixed case", in: " Inbound ", want: input.TriggerInbound},
		{name: "form alias", in: "form", want: input.TriggerInbound},
		{name: "outbound", in: "outbound", want: input.TriggerOutbound},
		{name: "campaign alias", in: "Campaign", want: input.TriggerOutbound},
		{name: "empty", in: "", want: ""},
		{name: "unknown", in: "carrier-pigeon", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := input.NormalizeTriggerSource(tt.in); got != tt.want {
				t.Fatalf("NormalizeTriggerSource(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("normalizes fields", func(t *testing.T) {
		raw := `{
			"meta": {"trigger_source": "Form", "submitted_at": "2024-01-15T10:31:00Z", "timezone": "  "},
			"organization": {"name": "  Acme Relief  ", "website": "https://www.acme.org", "domain": ""},
			"contact": {"full_name": " Jane Doe ", "email": " Jane@Acme.ORG "},
			"routing": {"email_recipients": ["a@x.test", " ", "b@x.test"]}
		}`
		rec, err := input.Parse([]byte(raw))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Meta.TriggerSource != input.TriggerInbound {
			t.Fatalf("trigger source=%q", rec.Meta.TriggerSource)
		}
		if rec.OrgName() != "Acme Relief" {
			t.Fatalf("org name=%q", rec.OrgName())
		}
		if rec.Organization.Domain != nil {
			t.Fatalf("blank domain should be absent, got %q", *rec.Organization.Domain)
		}
		if rec.Meta.Timezone != nil {
			t.Fatalf("blank timezone should be absent")
		}
		if rec.Contact.Email != "jane@acme.org" {
			t.Fatalf("email=%q", rec.Contact.Email)
		}
		if len(rec.Routing.EmailRecipients) != 2 {
			t.Fatalf("recipients=%#v", rec.Routing.EmailRecipients)
		}
	})

	failures := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{`},
		{name: "unknown trigger", raw: `{"meta":{"trigger_source":"x","submitted_at":"2024-01-15T10:31:00Z"},"organization":{"name":"A"}}`},
		{name: "bad timestamp", raw: `{"meta":{"trigger_source":"inbound","submitted_at":"yesterday"},"organization":{"name":"A"}}`},
		{name: "no name or website", raw: `{"meta":{"trigger_source":"inbound","submitted_at":"2024-01-15T10:31:00Z"},"organization":{"domain":"a.com"}}`},
		{name: "malformed email", raw: `{"meta":{"trigger_source":"inbound","submitted_at":"2024-01-15T10:31:00Z"},"organization":{"name":"A"},"contact":{"email":"nobody"}}`},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := input.Parse([]byte(tt.raw))
			if !errors.Is(err, input.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestReadLeadsCSV(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)

	t.Run("reads rows as outbound records", func(t *testing.T) {
		in := "Organization_Name,Website,Contact_Email,Email_Recipients\n" +
			"Acme,https://acme.org,jo@acme.org,a@x.test; b@x.test\n" +
			"Beta,,,\n"
		got, err := input.ReadLeadsCSV(strings.NewReader(in), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		if got[0].Meta.TriggerSource != input.TriggerOutbound || got[0].Meta.SubmittedAt != "2024-03-04T09:15:00Z" {
			t.Fatalf("unexpected meta: %#v", got[0].Meta)
		}
		if got[0].OrgWebsite() != "https://acme.org" || len(got[0].Routing.EmailRecipients) != 2 {
			t.Fatalf("unexpected record: %#v", got[0])
		}
		if got[1].Organization.Website != nil {
			t.Fatalf("empty website cell should be absent")
		}
	})

	t.Run("missing identity columns errors", func(t *testing.T) {
		_, err := input.ReadLeadsCSV(strings.NewReader("contact_email\nx@y.z\n"), now)
		if err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("row without name or website reports line", func(t *testing.T) {
		_, err := input.ReadLeadsCSV(strings.NewReader("organization_name,domain\nAcme,acme.org\n,beta.org\n"), now)
		if err == nil || !strings.Contains(err.Error(), "row 3") {
			t.Fatalf("expected row 3 error, got %v", err)
		}
	})
}
