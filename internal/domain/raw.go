package domain

import "time"

// RawIssue is one issue as returned by the tracker search, changelog expanded.
type RawIssue struct {
    Key       string
    Summary   string
    Created   time.Time
    Updated   time.Time
    Creator   string
    Parent    *RawParent
    Histories []RawHistory
}

type RawParent struct {
    Key     string
    Summary string
}

type RawHistory struct {
    Created time.Time
    Author  string
    Items   []RawItem
}

type RawItem struct {
    Field      string
    FromString string
    ToString   string
}

// Query is the resolved request handed to the tracker.
type Query struct {
    Project string
    Window  Window
}
