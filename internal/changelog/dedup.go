package changelog

import (
    "time"

    "github.com/HamedShams/jira-changed/internal/domain"
)

// Reduce drops blacklisted field changes and, per field, every change that is
// superseded by a strictly later change to the same field (second resolution).
// Ties are all kept. Created events pass through untouched. Input order is kept.
//
// The comparison is quadratic; a single issue's in-window changelog is small.
func Reduce(events []domain.ChangeEvent, blacklist domain.FieldBlacklist) []domain.ChangeEvent {
    survivors := make([]domain.ChangeEvent, 0, len(events))
    for _, e := range events {
        if e.Action == domain.ActionChanged && blacklist.Contains(e.Field) { continue }
        survivors = append(survivors, e)
    }

    out := make([]domain.ChangeEvent, 0, len(survivors))
    for i, e := range survivors {
        if e.Action != domain.ActionChanged || !superseded(i, survivors) {
            out = append(out, e)
        }
    }
    return out
}

func superseded(i int, events []domain.ChangeEvent) bool {
    e := events[i]
    at := e.Time.Truncate(time.Second)
    for j, other := range events {
        if j == i || other.Action != domain.ActionChanged || other.Field != e.Field { continue }
        if other.Time.Truncate(time.Second).After(at) { return true }
    }
    return false
}
