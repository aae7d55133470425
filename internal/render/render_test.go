package render

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/input"
)

func loadBrief(t *testing.T) brief.Brief {
	t.Helper()
	raw, err := os.ReadFile("../brief/testdata/valid_brief.json")
	require.NoError(t, err)
	b, err := brief.Parse(raw)
	require.NoError(t, err)
	return b
}

func TestCRM(t *testing.T) {
	t.Parallel()

	b := loadBrief(t)
	v := CRM(b)
	assert.Equal(t, "Deal prep: Acme Foundation", v.Title)
	assert.True(t, strings.HasPrefix(v.Markdown, "# Deal prep: Acme Foundation\n"))
	for _, h := range []string{"## Executive summary", "## AI opportunities", "## Objections", "## Sources"} {
		assert.Contains(t, v.Markdown, h)
	}
	assert.Contains(t, v.Markdown, "- Automate donor acknowledgement letters\n")
	assert.Contains(t, v.Markdown, "- https://www.acme.com/about\n")
}

func TestEmail(t *testing.T) {
	t.Parallel()

	b := loadBrief(t)
	b.ExecutiveSummary.Summary = `Acme <script>alert("x")</script> & friends`
	rec := input.Record{Meta: input.Meta{
		RequestedMeetingAt: input.StringPtr("2026-03-04T17:30:00Z"),
		Timezone:           input.StringPtr("America/Chicago"),
	}}

	v, err := Email(b, rec)
	require.NoError(t, err)
	assert.Equal(t, "Deal prep: Acme Foundation (Wed Mar 4, 2026 11:30 CST)", v.Subject)
	assert.NotContains(t, v.HTML, "<script>")
	assert.Contains(t, v.HTML, "&lt;script&gt;")
	assert.Contains(t, v.PlainText, `<script>alert("x")</script>`)

	for _, title := range []string{"Executive summary", "Demo plan", "Follow-up (short)"} {
		assert.Contains(t, v.HTML, title)
		assert.Contains(t, v.PlainText, strings.ToUpper(title))
	}
}

func TestEmail_Unscheduled(t *testing.T) {
	t.Parallel()

	v, err := Email(loadBrief(t), input.Record{})
	require.NoError(t, err)
	assert.Equal(t, "Deal prep: Acme Foundation (unscheduled)", v.Subject)
}

func TestDueDate(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		rec  input.Record
		now  time.Time
		want time.Time
	}{
		{
			name: "hour before meeting",
			rec:  input.Record{Meta: input.Meta{RequestedMeetingAt: input.StringPtr("2026-03-04T17:30:00Z")}},
			now:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 4, 16, 30, 0, 0, time.UTC),
		},
		{
			name: "next business day utc",
			rec:  input.Record{},
			now:  time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC), // Tuesday
			want: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "friday rolls to monday",
			rec:  input.Record{},
			now:  time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "record timezone",
			rec:  input.Record{Meta: input.Meta{Timezone: input.StringPtr("America/New_York")}},
			now:  time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC), // Tuesday 21:00 in New York
			want: time.Date(2026, 3, 4, 9, 0, 0, 0, ny),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DueDate(tc.rec, tc.now)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestAll(t *testing.T) {
	t.Parallel()

	b := loadBrief(t)
	v, err := All(b, input.Record{}, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, b.Meta.RunID, v.RunID)
	assert.Equal(t, "Prep call: Acme Foundation", v.Motion.Title)
	assert.Equal(t, v.CRM.Markdown, v.Motion.Body)
}
