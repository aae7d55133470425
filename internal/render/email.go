package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/input"
)

const meetingLayout = "Mon Jan 2, 2006 15:04 MST"

var emailHTML = template.Must(template.New("email").Funcs(template.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}).Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;font-size:14px">
<h1>{{.Heading}}</h1>
<p><em>{{.Byline}}</em></p>
{{range .Sections}}<h2>{{.Title}}</h2>
{{if .Paragraph}}<p>{{range $i, $l := lines .Paragraph}}{{if $i}}<br>{{end}}{{$l}}{{end}}</p>
{{end}}{{if .Items}}<ul>
{{range .Items}}<li>{{.}}</li>
{{end}}</ul>
{{end}}{{end}}</body></html>
`))

type emailData struct {
	Heading  string
	Byline   string
	Sections []section
}

// Email renders the brief for the internal team. The plaintext and HTML bodies
// carry the same sections; the follow-up drafts come last.
func Email(b brief.Brief, rec input.Record) (EmailView, error) {
	when := "unscheduled"
	if t, ok := rec.MeetingTime(); ok {
		when = t.In(rec.Location()).Format(meetingLayout)
	}
	subject := fmt.Sprintf("Deal prep: %s (%s)", orgName(b), when)

	secs := sections(b)
	secs = append(secs,
		section{Title: "Follow-up (short): " + b.FollowUpEmails.ShortVersion.Subject, Paragraph: b.FollowUpEmails.ShortVersion.Body},
		section{Title: "Follow-up (warm): " + b.FollowUpEmails.WarmVersion.Subject, Paragraph: b.FollowUpEmails.WarmVersion.Body},
	)
	data := emailData{
		Heading:  subject,
		Byline:   fmt.Sprintf("Requester: %s (%s). Run %s.", b.Meta.RequesterName, b.Meta.RequesterTitle, b.Meta.RunID),
		Sections: secs,
	}

	var html bytes.Buffer
	if err := emailHTML.Execute(&html, data); err != nil {
		return EmailView{}, fmt.Errorf("render email html: %w", err)
	}

	var txt strings.Builder
	txt.WriteString(data.Heading + "\n" + data.Byline + "\n")
	for _, s := range secs {
		fmt.Fprintf(&txt, "\n%s\n%s\n", strings.ToUpper(s.Title), strings.Repeat("-", len([]rune(s.Title))))
		if s.Paragraph != "" {
			txt.WriteString(s.Paragraph + "\n")
		}
		for _, it := range s.Items {
			txt.WriteString("  * " + it + "\n")
		}
	}
	return EmailView{Subject: subject, PlainText: txt.String(), HTML: html.String()}, nil
}
