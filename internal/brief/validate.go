package brief

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf16"
)

// Constraint names one rule of the validator.
type Constraint string

const (
	ConstraintExactLength Constraint = "exactLength"
	ConstraintMaxLength   Constraint = "maxLength"
	ConstraintMaxWords    Constraint = "maxWords"
	ConstraintMaxItems    Constraint = "maxItems"
	ConstraintNotFound    Constraint = "notFound"
	ConstraintRequired    Constraint = "required"
	ConstraintType        Constraint = "type"
	ConstraintURLFormat   Constraint = "urlFormat"
	ConstraintMinItems    Constraint = "minItems"
)

const (
	notAnArray = "not an array"
	notAString = "not a string"
)

// Violation is one failed check.
type Violation struct {
	Field      string     `json:"field"`
	Constraint Constraint `json:"constraint"`
	Message    string     `json:"message"`
	Actual     any        `json:"actual"`
	Expected   any        `json:"expected"`
}

// Report is the complete result of a validation.
type Report struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Messages renders each violation as "field: message".
func (r Report) Messages() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Field+": "+v.Message)
	}
	return out
}

// Options tunes validation.
type Options struct {
	// SkipSourceValidation disables the meta.source_urls evidence rule.
	SkipSourceValidation bool
	// NotFoundMarker is the sentinel named in messages; "" means NotFound.
	NotFoundMarker string
}

type rule struct {
	field string
	kind  Constraint
	bound int
}

// Declaration order is report order.
var rules = []rule{
	{field: "executive_summary.top_opportunities", kind: ConstraintExactLength, bound: 3},
	{field: "artificial_intelligence_opportunities", kind: ConstraintExactLength, bound: 3},
	{field: "objections_and_rebuttals", kind: ConstraintExactLength, bound: 3},
	{field: "executive_summary.summary", kind: ConstraintMaxLength, bound: 600},
	{field: "opening_script", kind: ConstraintMaxLength, bound: 450},
	{field: "demonstration_plan.steps", kind: ConstraintMaxItems, bound: 6},
	{field: "follow_up_emails.short_version.body", kind: ConstraintMaxWords, bound: 120},
	{field: "follow_up_emails.warm_version.body", kind: ConstraintMaxWords, bound: 180},
}

// NotFoundFields must hold a non-empty string, the sentinel when the fact is unknown.
var NotFoundFields = []string{
	"meta.organization_name",
	"meta.organization_website",
	"meta.organization_domain",
	"meta.requester_name",
	"meta.requester_title",
	"organization_understanding.mission",
	"website_analysis.overall_tone",
	"website_analysis.volunteer_flow_observations",
	"website_analysis.donation_flow_observations",
	"leadership_and_staff.executive_leader.name",
	"leadership_and_staff.executive_leader.role",
	"leadership_and_staff.executive_leader.summary",
	"requester_profile.summary",
	"requester_profile.conversation_angle",
}

const sourceURLsField = "meta.source_urls"

// Validate checks doc, a decoded JSON document, against every brief constraint
// and returns all violations. It never panics, whatever the shape of doc.
func Validate(doc any, opts Options) Report {
	marker := opts.NotFoundMarker
	if marker == "" {
		marker = NotFound
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return report([]Violation{{
			Field:      "brief",
			Constraint: ConstraintRequired,
			Message:    "brief must be a JSON object",
			Actual:     describe(doc),
			Expected:   "object",
		}})
	}

	var out []Violation
	for _, r := range rules {
		if v, bad := r.check(root); bad {
			out = append(out, v)
		}
	}
	for _, f := range NotFoundFields {
		if v, bad := checkNotFound(root, f, marker); bad {
			out = append(out, v)
		}
	}
	if !opts.SkipSourceValidation {
		out = append(out, checkSources(root)...)
	}
	return report(out)
}

// ValidateJSON decodes raw and validates it. Undecodable input is reported as a
// single required violation.
func ValidateJSON(raw []byte, opts Options) Report {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return report([]Violation{{
			Field:      "brief",
			Constraint: ConstraintRequired,
			Message:    "brief is not valid JSON: " + err.Error(),
			Actual:     "invalid JSON",
			Expected:   "object",
		}})
	}
	return Validate(doc, opts)
}

// ValidateBrief validates a typed Brief.
func ValidateBrief(b Brief, opts Options) Report {
	doc, err := ToDocument(b)
	if err != nil {
		return Validate(nil, opts)
	}
	return Validate(doc, opts)
}

func report(v []Violation) Report {
	if v == nil {
		v = []Violation{}
	}
	return Report{Valid: len(v) == 0, Violations: v}
}

func (r rule) check(root map[string]any) (Violation, bool) {
	val, _ := lookup(root, r.field)
	switch r.kind {
	case ConstraintExactLength, ConstraintMaxItems:
		arr, ok := val.([]any)
		if !ok {
			return Violation{
				Field:      r.field,
				Constraint: r.kind,
				Message:    fmt.Sprintf("must be an array with %s %d items", itemsWord(r.kind), r.bound),
				Actual:     notAnArray,
				Expected:   r.bound,
			}, true
		}
		n := len(arr)
		if (r.kind == ConstraintExactLength && n != r.bound) || (r.kind == ConstraintMaxItems && n > r.bound) {
			return Violation{
				Field:      r.field,
				Constraint: r.kind,
				Message:    fmt.Sprintf("must have %s %d items, has %d", itemsWord(r.kind), r.bound, n),
				Actual:     n,
				Expected:   r.bound,
			}, true
		}
	case ConstraintMaxLength, ConstraintMaxWords:
		s, ok := val.(string)
		if !ok {
			return Violation{
				Field:      r.field,
				Constraint: ConstraintType,
				Message:    "must be a string",
				Actual:     notAString,
				Expected:   "string",
			}, true
		}
		if r.kind == ConstraintMaxLength {
			if n := CharCount(s); n > r.bound {
				return Violation{
					Field:      r.field,
					Constraint: r.kind,
					Message:    fmt.Sprintf("must be at most %d characters, has %d", r.bound, n),
					Actual:     n,
					Expected:   r.bound,
				}, true
			}
			return Violation{}, false
		}
		if n := WordCount(s); n > r.bound {
			return Violation{
				Field:      r.field,
				Constraint: r.kind,
				Message:    fmt.Sprintf("must be at most %d words, has %d", r.bound, n),
				Actual:     n,
				Expected:   r.bound,
			}, true
		}
	}
	return Violation{}, false
}

func itemsWord(c Constraint) string {
	if c == ConstraintMaxItems {
		return "at most"
	}
	return "exactly"
}

func checkNotFound(root map[string]any, field, marker string) (Violation, bool) {
	val, present := lookup(root, field)
	switch v := val.(type) {
	case string:
		if v != "" {
			return Violation{}, false
		}
		return Violation{
			Field:      field,
			Constraint: ConstraintNotFound,
			Message:    fmt.Sprintf("is empty; use %q when the information is unavailable", marker),
			Actual:     "",
			Expected:   marker,
		}, true
	case nil:
		actual := "missing"
		if present {
			actual = "null"
		}
		return Violation{
			Field:      field,
			Constraint: ConstraintNotFound,
			Message:    fmt.Sprintf("is %s; use %q when the information is unavailable", actual, marker),
			Actual:     nil,
			Expected:   marker,
		}, true
	default:
		return Violation{
			Field:      field,
			Constraint: ConstraintType,
			Message:    "must be a string",
			Actual:     describe(v),
			Expected:   "string",
		}, true
	}
}

func checkSources(root map[string]any) []Violation {
	val, _ := lookup(root, sourceURLsField)
	arr, ok := val.([]any)
	if !ok {
		return []Violation{{
			Field:      sourceURLsField,
			Constraint: ConstraintMinItems,
			Message:    "must be an array of at least one source URL",
			Actual:     notAnArray,
			Expected:   1,
		}}
	}
	if len(arr) == 0 {
		return []Violation{{
			Field:      sourceURLsField,
			Constraint: ConstraintMinItems,
			Message:    "must list at least one source URL",
			Actual:     0,
			Expected:   1,
		}}
	}
	var out []Violation
	for i, item := range arr {
		s, isString := item.(string)
		if isString && IsHTTPURL(s) {
			continue
		}
		var actual any = item
		if !isString {
			actual = describe(item)
		}
		out = append(out, Violation{
			Field:      fmt.Sprintf("%s[%d]", sourceURLsField, i),
			Constraint: ConstraintURLFormat,
			Message:    "must be an absolute http or https URL",
			Actual:     actual,
			Expected:   "http(s) URL",
		})
	}
	return out
}

// IsHTTPURL reports whether s parses as an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CharCount is the raw length of s in UTF-16 code units, with no normalization.
func CharCount(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// WordCount counts whitespace-delimited words; blank strings have zero.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// lookup walks a dot path. The second result reports whether the final key was
// present, so a JSON null can be told apart from a missing field.
func lookup(root map[string]any, path string) (any, bool) {
	var cur any = root
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
