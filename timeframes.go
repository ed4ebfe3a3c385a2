package threads

import "time"

// TimeFrame is a closed range of unix seconds.
type TimeFrame struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Window converts the frame to a TimeWindow.
func (f TimeFrame) Window() TimeWindow {
	s, e := time.Unix(f.Start, 0).UTC(), time.Unix(f.End, 0).UTC()
	return TimeWindow{Since: &s, Until: &e}
}

// Named time frames returned by TimeFrames.
const (
	FrameLastWeek      = "last_week"
	FrameCurrentWeek   = "current_week"
	FrameRolling7Days  = "rolling_7_days"
	FrameRolling90Days = "rolling_90_days"
)

// TimeFrames returns the common reporting windows relative to now. Weeks run
// Monday 00:00:00 to Sunday 23:59:59 UTC.
func TimeFrames(now time.Time) map[string]TimeFrame {
	now = now.UTC()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	y, m, d := now.Date()
	weekStart := time.Date(y, m, d-daysSinceMonday, 0, 0, 0, 0, time.UTC)
	weekLen := 7*24*time.Hour - time.Second
	lastWeekStart := weekStart.AddDate(0, 0, -7)

	return map[string]TimeFrame{
		FrameLastWeek:      {Start: lastWeekStart.Unix(), End: lastWeekStart.Add(weekLen).Unix()},
		FrameCurrentWeek:   {Start: weekStart.Unix(), End: weekStart.Add(weekLen).Unix()},
		FrameRolling7Days:  {Start: now.AddDate(0, 0, -7).Unix(), End: now.Unix()},
		FrameRolling90Days: {Start: now.AddDate(0, 0, -90).Unix(), End: now.Unix()},
	}
}
