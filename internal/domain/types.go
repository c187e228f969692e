package domain

import (
    "strings"
    "time"
)

type Action string

const (
    ActionCreated Action = "created"
    ActionChanged Action = "changed"
)

// ChangeEvent is one field-level change (or the synthetic creation) of an issue.
// Created events carry no Field.
type ChangeEvent struct {
    Time      time.Time
    Action    Action
    Actor     string
    Field     string
    FromValue string
    ToValue   string
}

func (e ChangeEvent) IsCreated() bool { return e.Action == ActionCreated }

type ActorGroup struct {
    Actor   string
    Entries []ChangeEvent
}

type ParentRef struct {
    Key     string
    Summary string
}

// IssueHistory is the presentation-ready record for one issue inside a window.
type IssueHistory struct {
    Key     string
    Summary string
    URL     string
    Parent  *ParentRef
    Events  []ChangeEvent
    Groups  []ActorGroup
}

// Window is a calendar-day range. Start and End are midnights in the same location.
type Window struct {
    Start time.Time
    End   time.Time
}

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
    if loc == nil { loc = time.UTC }
    t = t.In(loc)
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (w Window) Location() *time.Location {
    if w.Start.IsZero() { return time.UTC }
    return w.Start.Location()
}

// FieldBlacklist holds lower-cased field names.
type FieldBlacklist map[string]struct{}

func NewFieldBlacklist(fields ...string) FieldBlacklist {
    b := FieldBlacklist{}
    for _, f := range fields {
        f = strings.ToLower(strings.TrimSpace(f))
        if f == "" { continue }
        b[f] = struct{}{}
    }
    return b
}

func (b FieldBlacklist) Contains(field string) bool {
    if len(b) == 0 { return false }
    _, ok := b[strings.ToLower(strings.TrimSpace(field))]
    return ok
}

func (b FieldBlacklist) Fields() []string {
    out := make([]string, 0, len(b))
    for f := range b { out = append(out, f) }
    return out
}
