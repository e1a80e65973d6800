package logic

import (
	"fmt"
	"time"
)

// ChimeWindow is the inclusive range of local hours during which hourly
// chimes may fire.
type ChimeWindow struct {
	StartHour int
	EndHour   int
}

// Validate checks that both hours are on the clock and in order.
func (w ChimeWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("chime window %d-%d: hours must be within 0..23", w.StartHour, w.EndHour)
	}
	if w.StartHour > w.EndHour {
		return fmt.Errorf("chime window %d-%d: start after end", w.StartHour, w.EndHour)
	}
	return nil
}

func (w ChimeWindow) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", w.StartHour, w.EndHour)
}

// NextChime returns the next top-of-the-hour instant after now that falls
// inside the window, in now's location.
//
// The candidate is the start of the next clock hour. It is accepted if it is
// on the same calendar day and its hour is <= EndHour. Past the end of the
// window (including the 23->0 rollover) the chime moves to StartHour on the
// following day. Only EndHour bounds a same-day candidate, so a daemon
// started in the small hours chimes at the next hour.
func NextChime(now time.Time, w ChimeWindow) time.Time {
	loc := now.Location()
	y, m, d := now.Date()

	// time.Date normalises hour 24 into the next day.
	candidate := time.Date(y, m, d, now.Hour()+1, 0, 0, 0, loc)
	cy, cm, cd := candidate.Date()
	sameDay := cy == y && cm == m && cd == d

	if sameDay && candidate.Hour() <= w.EndHour {
		return candidate
	}
	return time.Date(y, m, d+1, w.StartHour, 0, 0, 0, loc)
}
