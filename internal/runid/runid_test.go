package runid_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/runid"
)

func rec(src input.TriggerSource, submittedAt string, org input.Organization) input.Record {
	return input.Record{
		Meta:         input.Meta{TriggerSource: src, SubmittedAt: submittedAt},
		Organization: org,
	}
}

func TestOrganizationID(t *testing.T) {
	s := input.StringPtr
	tests := []struct {
		name string
		org  input.Organization
		want string
	}{
		{name: "domain wins over everything", org: input.Organization{Domain: s("ACME.com"), Website: s("https://other.org"), Name: s("Other Org")}, want: "acme.com"},
		{name: "website host", org: input.Organization{Website: s("https://WWW.Acme.org/about?x=1")}, want: "acme.org"},
		{name: "website without scheme", org: input.Organization{Website: s("www.acme.org/donate")}, want: "acme.org"},
		{name: "website keeps non-www subdomain", org: input.Organization{Website: s("http://give.acme.org")}, want: "give.acme.org"},
		{name: "name fallback", org: input.Organization{Name: s("  Acme   Relief\tFund ")}, want: "acme_relief_fund"},
		{name: "empty domain falls through", org: input.Organization{Domain: s(""), Name: s("Acme")}, want: "acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runid.OrganizationID(tt.org)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("OrganizationID=%q want=%q", got, tt.want)
			}
		})
	}

	t.Run("nothing present", func(t *testing.T) {
		for _, org := range []input.Organization{
			{},
			{Name: s("   ")},
		} {
			if _, err := runid.OrganizationID(org); !errors.Is(err, runid.ErrNoOrganizationIdentifier) {
				t.Fatalf("expected ErrNoOrganizationIdentifier, got %v", err)
			}
		}
	})
}

func TestRoundTimestamp(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		src  input.TriggerSource
		want string
	}{
		{name: "inbound floors to 5 minutes", ts: "2024-01-15T10:34:59.999Z", src: input.TriggerInbound, want: "2024-01-15T10:30:00.000Z"},
		{name: "inbound on boundary", ts: "2024-01-15T10:35:00Z", src: input.TriggerInbound, want: "2024-01-15T10:35:00.000Z"},
		{name: "outbound floors to the hour", ts: "2024-01-15T10:59:59Z", src: input.TriggerOutbound, want: "2024-01-15T10:00:00.000Z"},
		{name: "offset is normalized to UTC", ts: "2024-01-15T12:33:00+02:00", src: input.TriggerInbound, want: "2024-01-15T10:30:00.000Z"},
		{name: "pre-epoch floors down", ts: "1969-12-31T23:59:30Z", src: input.TriggerInbound, want: "1969-12-31T23:55:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runid.RoundTimestamp(tt.ts, tt.src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("RoundTimestamp(%q)=%q want=%q", tt.ts, got, tt.want)
			}
		})
	}

	if _, err := runid.RoundTimestamp("not a time", input.TriggerInbound); err == nil {
		t.Fatalf("expected error for malformed timestamp")
	}
}

func TestCompute(t *testing.T) {
	acme := input.Organization{Domain: input.StringPtr("acme.com")}

	t.Run("known value", func(t *testing.T) {
		got, err := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:31:00Z", acme))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// sha256("inbound|2024-01-15T10:30:00.000Z|acme.com")
		if want := "run_35620fa6b991a072"; got != want {
			t.Fatalf("Compute=%q want=%q", got, want)
		}
	})

	t.Run("full variant", func(t *testing.T) {
		got, err := runid.ComputeFull(rec(input.TriggerInbound, "2024-01-15T10:31:00Z", acme))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "run_35620fa6b991a072faf054e91cd6f12be20d70794e4b1c2cd760045cbc57f90e"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("ComputeFull mismatch (-want +got):\n%s", diff)
		}
		if !runid.Valid(got) {
			t.Fatalf("full id should be valid")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		r := rec(input.TriggerOutbound, "2024-01-15T10:31:00Z", acme)
		a, _ := runid.Compute(r)
		b, _ := runid.Compute(r)
		if a != b {
			t.Fatalf("ids differ across calls: %q vs %q", a, b)
		}
		if want := "run_82bf4a3789436ddb"; a != want {
			t.Fatalf("outbound id=%q want=%q", a, want)
		}
	})

	t.Run("same bucket collapses", func(t *testing.T) {
		a, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:31:00Z", acme))
		b, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:33:00Z", acme))
		if a != b {
			t.Fatalf("expected identical ids, got %q and %q", a, b)
		}
	})

	t.Run("adjacent bucket differs", func(t *testing.T) {
		a, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:31:00Z", acme))
		b, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:28:00Z", acme))
		if a == b {
			t.Fatalf("expected different ids for adjacent buckets")
		}
		// sha256("inbound|2024-01-15T10:25:00.000Z|acme.com")
		if want := "run_ff4eafd96e794d8c"; b != want {
			t.Fatalf("Compute=%q want=%q", b, want)
		}
	})

	t.Run("one minute apart across a boundary differs", func(t *testing.T) {
		a, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:29:30Z", acme))
		b, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:30:30Z", acme))
		if a == b {
			t.Fatalf("expected different ids across a bucket boundary")
		}
	})

	t.Run("nearly an hour apart collapses for outbound", func(t *testing.T) {
		a, _ := runid.Compute(rec(input.TriggerOutbound, "2024-01-15T10:00:01Z", acme))
		b, _ := runid.Compute(rec(input.TriggerOutbound, "2024-01-15T10:59:00Z", acme))
		if a != b {
			t.Fatalf("expected identical outbound ids")
		}
	})

	t.Run("trigger kind changes the id", func(t *testing.T) {
		a, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:00:00Z", acme))
		b, _ := runid.Compute(rec(input.TriggerOutbound, "2024-01-15T10:00:00Z", acme))
		if a == b {
			t.Fatalf("expected different ids for different trigger kinds")
		}
	})

	t.Run("missing organization", func(t *testing.T) {
		_, err := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:31:00Z", input.Organization{}))
		if !errors.Is(err, runid.ErrNoOrganizationIdentifier) {
			t.Fatalf("expected ErrNoOrganizationIdentifier, got %v", err)
		}
	})

	t.Run("shape", func(t *testing.T) {
		id, _ := runid.Compute(rec(input.TriggerInbound, "2024-01-15T10:31:00Z", acme))
		if !strings.HasPrefix(id, "run_") || len(id) != len("run_")+16 || !runid.Valid(id) {
			t.Fatalf("unexpected id shape %q", id)
		}
	})
}
