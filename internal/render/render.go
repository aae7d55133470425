// Package render turns a validated brief into the per-channel views the
// delivery adapters send.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/input"
)

type CRMView struct {
	Title    string
	Markdown string
}

type EmailView struct {
	Subject   string
	PlainText string
	HTML      string
}

type MotionView struct {
	Title   string
	Body    string
	DueDate time.Time
}

// Views bundles every channel's rendering of one brief.
type Views struct {
	RunID  string
	CRM    CRMView
	Email  EmailView
	Motion MotionView
}

// All renders every view.
func All(b brief.Brief, rec input.Record, now time.Time) (Views, error) {
	em, err := Email(b, rec)
	if err != nil {
		return Views{}, err
	}
	return Views{
		RunID:  b.Meta.RunID,
		CRM:    CRM(b),
		Email:  em,
		Motion: Motion(b, rec, now),
	}, nil
}

func orgName(b brief.Brief) string {
	if n := strings.TrimSpace(b.Meta.OrganizationName); n != "" && n != brief.NotFound {
		return n
	}
	return "unknown organization"
}

// section is one titled block shared by the markdown, plaintext and HTML forms.
type section struct {
	Title     string
	Paragraph string
	Items     []string
}

func sections(b brief.Brief) []section {
	var out []section
	add := func(title, para string, items ...string) {
		out = append(out, section{Title: title, Paragraph: strings.TrimSpace(para), Items: items})
	}

	add("Executive summary", b.ExecutiveSummary.Summary, b.ExecutiveSummary.TopOpportunities...)

	ou := b.OrganizationUnderstanding
	add("Organization", "Mission: "+ou.Mission+"\nAudience: "+nz(ou.TargetAudience), ou.Programs...)

	wa := b.WebsiteAnalysis
	add("Website", "Tone: "+wa.OverallTone+"\nVolunteer flow: "+wa.VolunteerFlowObservations+"\nDonation flow: "+wa.DonationFlowObservations, wa.KeyObservations...)

	people := []string{personLine(b.LeadershipAndStaff.ExecutiveLeader)}
	for _, p := range b.LeadershipAndStaff.OtherStaff {
		people = append(people, personLine(p))
	}
	add("Leadership", "", people...)

	add("Requester", b.RequesterProfile.Summary+"\nAngle: "+b.RequesterProfile.ConversationAngle)

	var opps []string
	for _, o := range b.AIOpportunities {
		opps = append(opps, fmt.Sprintf("%s: %s (impact: %s)", o.Title, o.Description, o.ExpectedImpact))
	}
	add("AI opportunities", "", opps...)

	add("Demo plan", b.DemonstrationPlan.Opening, b.DemonstrationPlan.Steps...)

	var objs []string
	for _, o := range b.ObjectionsAndRebuttals {
		objs = append(objs, fmt.Sprintf("%s → %s", o.Objection, o.Rebuttal))
	}
	add("Objections", "", objs...)

	add("Opening script", b.OpeningScript)
	add("Sources", "", b.Meta.SourceURLs...)
	return out
}

func personLine(p brief.Person) string {
	return fmt.Sprintf("%s, %s: %s", p.Name, p.Role, p.Summary)
}

func nz(s string) string {
	if strings.TrimSpace(s) == "" {
		return brief.NotFound
	}
	return s
}

// CRM renders the brief as a sectioned markdown note.
func CRM(b brief.Brief) CRMView {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Deal prep: %s\n\n", orgName(b))
	fmt.Fprintf(&sb, "_Run %s, generated %s, %s trigger. Requester: %s (%s)._\n", b.Meta.RunID, b.Meta.GeneratedAt, b.Meta.TriggerSource, b.Meta.RequesterName, b.Meta.RequesterTitle)
	for _, s := range sections(b) {
		fmt.Fprintf(&sb, "\n## %s\n\n", s.Title)
		if s.Paragraph != "" {
			for _, line := range strings.Split(s.Paragraph, "\n") {
				sb.WriteString(line)
				sb.WriteString("  \n")
			}
			if len(s.Items) > 0 {
				sb.WriteString("\n")
			}
		}
		for _, it := range s.Items {
			sb.WriteString("- ")
			sb.WriteString(it)
			sb.WriteString("\n")
		}
	}
	return CRMView{Title: "Deal prep: " + orgName(b), Markdown: sb.String()}
}
