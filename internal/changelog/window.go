package changelog

import (
    "time"

    "github.com/HamedShams/jira-changed/internal/domain"
)

// InWindow reports whether t falls on a calendar day strictly between
// w.Start-1d and w.End+1d, days taken in the window's location.
// The one-day margin absorbs time-of-day skew between tracker timestamps and
// day-granular window boundaries.
func InWindow(t time.Time, w domain.Window) bool {
    loc := w.Location()
    d := domain.Day(t, loc)
    lo := domain.Day(w.Start, loc).AddDate(0, 0, -1)
    hi := domain.Day(w.End, loc).AddDate(0, 0, 1)
    return d.After(lo) && d.Before(hi)
}
