// Package brief holds the Deal Preparation Brief document and its validator.
package brief

import (
	"encoding/json"
	"fmt"
)

// NotFound is the sentinel for facts the sources did not provide.
const NotFound = "Not found"

// Brief is the typed view of a brief document. Validation works on the generic
// decoded JSON so malformed documents can still be reported on; renderers use
// this type after validation passes.
type Brief struct {
	Meta                      Meta                      `json:"meta"`
	ExecutiveSummary          ExecutiveSummary          `json:"executive_summary"`
	OrganizationUnderstanding OrganizationUnderstanding `json:"organization_understanding"`
	WebsiteAnalysis           WebsiteAnalysis           `json:"website_analysis"`
	LeadershipAndStaff        LeadershipAndStaff        `json:"leadership_and_staff"`
	RequesterProfile          RequesterProfile          `json:"requester_profile"`
	AIOpportunities           []AIOpportunity           `json:"artificial_intelligence_opportunities"`
	DemonstrationPlan         DemonstrationPlan         `json:"demonstration_plan"`
	ObjectionsAndRebuttals    []Objection               `json:"objections_and_rebuttals"`
	OpeningScript             string                    `json:"opening_script"`
	FollowUpEmails            FollowUpEmails            `json:"follow_up_emails"`
}

type Meta struct {
	RunID               string   `json:"run_id"`
	GeneratedAt         string   `json:"generated_at"`
	TriggerSource       string   `json:"trigger_source"`
	OrganizationName    string   `json:"organization_name"`
	OrganizationWebsite string   `json:"organization_website"`
	OrganizationDomain  string   `json:"organization_domain"`
	RequesterName       string   `json:"requester_name"`
	RequesterTitle      string   `json:"requester_title"`
	SourceURLs          []string `json:"source_urls"`
}

type ExecutiveSummary struct {
	Summary          string   `json:"summary"`
	TopOpportunities []string `json:"top_opportunities"`
}

type OrganizationUnderstanding struct {
	Mission        string   `json:"mission"`
	Programs       []string `json:"programs"`
	TargetAudience string   `json:"target_audience"`
}

type WebsiteAnalysis struct {
	OverallTone               string   `json:"overall_tone"`
	VolunteerFlowObservations string   `json:"volunteer_flow_observations"`
	DonationFlowObservations  string   `json:"donation_flow_observations"`
	KeyObservations           []string `json:"key_observations"`
}

type Person struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Summary string `json:"summary"`
}

type LeadershipAndStaff struct {
	ExecutiveLeader Person   `json:"executive_leader"`
	OtherStaff      []Person `json:"other_staff"`
}

type RequesterProfile struct {
	Summary           string `json:"summary"`
	ConversationAngle string `json:"conversation_angle"`
}

type AIOpportunity struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	ExpectedImpact string `json:"expected_impact"`
}

type DemonstrationPlan struct {
	Opening          string   `json:"opening"`
	Steps            []string `json:"steps"`
	ExampleResponses []string `json:"example_responses"`
}

type Objection struct {
	Objection string `json:"objection"`
	Rebuttal  string `json:"rebuttal"`
}

type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type FollowUpEmails struct {
	ShortVersion Email `json:"short_version"`
	WarmVersion  Email `json:"warm_version"`
}

// Decode converts a generic document (as produced by json.Unmarshal into any)
// into a Brief.
func Decode(doc any) (Brief, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return Brief{}, fmt.Errorf("encode brief: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw JSON into a Brief.
func Parse(raw []byte) (Brief, error) {
	var out Brief
	if err := json.Unmarshal(raw, &out); err != nil {
		return Brief{}, fmt.Errorf("decode brief: %w", err)
	}
	return out, nil
}

// ToDocument converts a Brief to the generic form the validator reads.
func ToDocument(b Brief) (map[string]any, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
