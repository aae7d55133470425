package synth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/longhornrumble/dealprep/internal/brief"
)

const systemPrompt = `You prepare sales meeting briefs for a company that sells AI assistants to nonprofits.
You write only from the evidence provided. You never invent people, numbers, or programs.`

func (s *Synthesizer) buildPrompt(in Inputs) string {
	marker := s.cfg.Validation.NotFoundMarker
	if marker == "" {
		marker = brief.NotFound
	}

	var b strings.Builder
	b.WriteString("Write a Deal Preparation Brief as one JSON object.\n\n")
	b.WriteString("Hard rules:\n")
	b.WriteString("- executive_summary.top_opportunities has exactly 3 items.\n")
	b.WriteString("- artificial_intelligence_opportunities has exactly 3 items.\n")
	b.WriteString("- objections_and_rebuttals has exactly 3 items.\n")
	b.WriteString("- executive_summary.summary is at most 600 characters.\n")
	b.WriteString("- opening_script is at most 450 characters.\n")
	b.WriteString("- demonstration_plan.steps has at most 6 items.\n")
	b.WriteString("- follow_up_emails.short_version.body is at most 120 words.\n")
	b.WriteString("- follow_up_emails.warm_version.body is at most 180 words.\n")
	fmt.Fprintf(&b, "- When a fact is not in the evidence, write exactly %q. Never leave a field empty or null.\n", marker)
	if !s.cfg.Validation.SkipSourceValidation {
		b.WriteString("- meta.source_urls lists the absolute http(s) URLs of the pages you relied on.\n")
	}

	b.WriteString("\nTrigger:\n")
	if raw, err := json.MarshalIndent(in.Record, "", "  "); err == nil {
		b.Write(raw)
		b.WriteString("\n")
	}

	if in.Scrape != nil && len(in.Scrape.Pages) > 0 {
		b.WriteString("\nWebsite pages:\n")
		for i, p := range in.Scrape.Pages {
			if i == s.cfg.MaxPromptPages {
				break
			}
			fmt.Fprintf(&b, "\n## %s (%s)\nURL: %s\n", p.Title, p.PageType, p.URL)
			if len(p.CTAs) > 0 {
				fmt.Fprintf(&b, "Calls to action: %s\n", strings.Join(p.CTAs, "; "))
			}
			b.WriteString(clip(p.Text, s.cfg.MaxPageChars))
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nNo website content is available.\n")
	}

	if in.Enrichment != nil {
		p := in.Enrichment.RequesterProfile
		fmt.Fprintf(&b, "\nRequester profile (confidence %s):\n%s\n", p.Confidence, p.Summary)
	}
	return b.String()
}

func repairPrompt(base string, report brief.Report) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\nYour previous reply was rejected. Fix every problem below and return the whole brief again:\n")
	for _, m := range report.Messages() {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
