package render

import (
	"time"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/input"
)

// Motion renders the prep task. The task is due an hour before the requested
// meeting, or at 09:00 on the next business day when no meeting is set.
func Motion(b brief.Brief, rec input.Record, now time.Time) MotionView {
	return MotionView{
		Title:   "Prep call: " + orgName(b),
		Body:    CRM(b).Markdown,
		DueDate: DueDate(rec, now),
	}
}

// DueDate computes the Motion due date for rec.
func DueDate(rec input.Record, now time.Time) time.Time {
	if t, ok := rec.MeetingTime(); ok {
		return t.Add(-time.Hour)
	}
	loc := rec.Location()
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 9, 0, 0, 0, loc).AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
