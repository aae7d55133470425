package synth

import (
	"sort"

	"google.golang.org/genai"
)

func str() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

func strs() *genai.Schema { return &genai.Schema{Type: genai.TypeArray, Items: str()} }

func obj(props map[string]*genai.Schema) *genai.Schema {
	req := make([]string, 0, len(props))
	for k := range props {
		req = append(req, k)
	}
	sort.Strings(req)
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: req}
}

func person() *genai.Schema {
	return obj(map[string]*genai.Schema{"name": str(), "role": str(), "summary": str()})
}

func email() *genai.Schema {
	return obj(map[string]*genai.Schema{"subject": str(), "body": str()})
}

func exactly(n int64, items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items, MinItems: &n, MaxItems: &n}
}

// BriefSchema is the response schema sent to the model. Structural limits are
// repeated here where the schema language can express them; the validator
// remains the authority.
func BriefSchema() *genai.Schema {
	three := int64(3)
	six := int64(6)
	return obj(map[string]*genai.Schema{
		"meta": obj(map[string]*genai.Schema{
			"run_id":               str(),
			"generated_at":         str(),
			"trigger_source":       str(),
			"organization_name":    str(),
			"organization_website": str(),
			"organization_domain":  str(),
			"requester_name":       str(),
			"requester_title":      str(),
			"source_urls":          strs(),
		}),
		"executive_summary": obj(map[string]*genai.Schema{
			"summary":           str(),
			"top_opportunities": exactly(three, str()),
		}),
		"organization_understanding": obj(map[string]*genai.Schema{
			"mission":         str(),
			"programs":        strs(),
			"target_audience": str(),
		}),
		"website_analysis": obj(map[string]*genai.Schema{
			"overall_tone":                str(),
			"volunteer_flow_observations": str(),
			"donation_flow_observations":  str(),
			"key_observations":            strs(),
		}),
		"leadership_and_staff": obj(map[string]*genai.Schema{
			"executive_leader": person(),
			"other_staff":      {Type: genai.TypeArray, Items: person()},
		}),
		"requester_profile": obj(map[string]*genai.Schema{
			"summary":            str(),
			"conversation_angle": str(),
		}),
		"artificial_intelligence_opportunities": exactly(three, obj(map[string]*genai.Schema{
			"title":           str(),
			"description":     str(),
			"expected_impact": str(),
		})),
		"demonstration_plan": obj(map[string]*genai.Schema{
			"opening":           str(),
			"steps":             {Type: genai.TypeArray, Items: str(), MaxItems: &six},
			"example_responses": strs(),
		}),
		"objections_and_rebuttals": exactly(three, obj(map[string]*genai.Schema{
			"objection": str(),
			"rebuttal":  str(),
		})),
		"opening_script": str(),
		"follow_up_emails": obj(map[string]*genai.Schema{
			"short_version": email(),
			"warm_version":  email(),
		}),
	})
}
