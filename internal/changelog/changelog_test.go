package changelog

import (
    "testing"
    "time"

    "github.com/google/go-cmp/cmp"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/HamedShams/jira-changed/internal/domain"
)

func day(s string) time.Time {
    t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
    if err != nil { panic(err) }
    return t
}

func at(s string) time.Time {
    t, err := time.Parse(time.RFC3339Nano, s)
    if err != nil { panic(err) }
    return t
}

func changed(ts, actor, field, to string) domain.ChangeEvent {
    return domain.ChangeEvent{Time: at(ts), Action: domain.ActionChanged, Actor: actor, Field: field, ToValue: to}
}

func TestInWindow_DayGranularityWithMargin(t *testing.T) {
    w := domain.Window{Start: day("2024-03-10"), End: day("2024-03-12")}
    cases := []struct {
        ts   string
        want bool
    }{
        {"2024-03-08T12:00:00Z", false},
        {"2024-03-09T23:59:59Z", false},
        {"2024-03-10T00:00:00Z", true},
        {"2024-03-11T10:00:00Z", true},
        {"2024-03-12T23:59:59Z", true},
        {"2024-03-13T00:00:00Z", false},
        {"2024-03-14T09:00:00Z", false},
    }
    for _, c := range cases {
        assert.Equal(t, c.want, InWindow(at(c.ts), w), c.ts)
    }
}

func TestInWindow_UsesWindowLocation(t *testing.T) {
    loc := time.FixedZone("UTC+3", 3*3600)
    w := domain.Window{Start: time.Date(2024, 3, 10, 0, 0, 0, 0, loc), End: time.Date(2024, 3, 11, 0, 0, 0, 0, loc)}
    // 22:30 UTC on the 9th is already the 10th at UTC+3
    assert.True(t, InWindow(at("2024-03-09T22:30:00Z"), w))
    assert.False(t, InWindow(at("2024-03-09T20:30:00Z"), w))
}

func TestReduce_LastWriteWinsPerField(t *testing.T) {
    events := []domain.ChangeEvent{
        changed("2024-03-10T09:00:00Z", "ann", "assignee", "bob"),
        changed("2024-03-10T10:00:00Z", "ann", "status", "In Progress"),
        changed("2024-03-10T11:00:00Z", "ben", "assignee", "carl"),
        changed("2024-03-11T08:00:00Z", "ann", "assignee", "dora"),
    }
    got := Reduce(events, nil)
    want := []domain.ChangeEvent{events[1], events[3]}
    if diff := cmp.Diff(want, got); diff != "" { t.Fatalf("Reduce mismatch (-want +got):\n%s", diff) }
}

func TestReduce_TiesWithinSecondAreKept(t *testing.T) {
    events := []domain.ChangeEvent{
        changed("2024-03-10T09:00:00.100Z", "ann", "summary", "a"),
        changed("2024-03-10T09:00:00.900Z", "ben", "summary", "b"),
        changed("2024-03-10T08:00:00Z", "ann", "summary", "old"),
    }
    got := Reduce(events, nil)
    require.Len(t, got, 2)
    assert.Equal(t, "a", got[0].ToValue)
    assert.Equal(t, "b", got[1].ToValue)
}

func TestReduce_BlacklistIsCaseInsensitive(t *testing.T) {
    events := []domain.ChangeEvent{
        changed("2024-03-10T09:00:00Z", "ann", "Rank", "x"),
        changed("2024-03-10T09:00:00Z", "ann", "Sprint", "s1"),
        changed("2024-03-10T09:00:00Z", "ann", "status", "Done"),
    }
    got := Reduce(events, domain.NewFieldBlacklist("rank", " SPRINT "))
    require.Len(t, got, 1)
    assert.Equal(t, "status", got[0].Field)
}

func TestReduce_BlacklistedLaterChangeDoesNotSupersede(t *testing.T) {
    events := []domain.ChangeEvent{
        changed("2024-03-10T09:00:00Z", "ann", "Rank", "x"),
        changed("2024-03-10T10:00:00Z", "ann", "rank", "y"),
    }
    got := Reduce(events, domain.NewFieldBlacklist("RANK"))
    assert.Empty(t, got)
}

func TestReduce_CreatedEventsAreNeverDeduplicated(t *testing.T) {
    created := domain.ChangeEvent{Time: at("2024-03-10T09:00:00Z"), Action: domain.ActionCreated, Actor: "ann"}
    later := created
    later.Time = at("2024-03-10T12:00:00Z")
    got := Reduce([]domain.ChangeEvent{created, later}, domain.NewFieldBlacklist(""))
    assert.Equal(t, []domain.ChangeEvent{created, later}, got)
}

func TestReduce_Idempotent(t *testing.T) {
    inputs := [][]domain.ChangeEvent{
        nil,
        {changed("2024-03-10T09:00:00Z", "ann", "assignee", "bob")},
        {
            changed("2024-03-10T09:00:00Z", "ann", "assignee", "bob"),
            changed("2024-03-10T09:00:00.5Z", "ben", "assignee", "carl"),
            changed("2024-03-10T07:00:00Z", "ann", "priority", "High"),
            changed("2024-03-10T06:00:00Z", "ann", "priority", "Low"),
            {Time: at("2024-03-10T05:00:00Z"), Action: domain.ActionCreated, Actor: "ann"},
            changed("2024-03-10T07:00:00Z", "ann", "rank", "x"),
        },
    }
    bl := domain.NewFieldBlacklist("rank")
    for i, in := range inputs {
        once := Reduce(in, bl)
        twice := Reduce(once, bl)
        if diff := cmp.Diff(once, twice); diff != "" { t.Fatalf("case %d not idempotent (-once +twice):\n%s", i, diff) }
    }
}

func TestGroupByActor_StablePartition(t *testing.T) {
    events := []domain.ChangeEvent{
        changed("2024-03-10T09:00:00Z", "ann", "a", "1"),
        changed("2024-03-10T09:01:00Z", "ben", "b", "2"),
        changed("2024-03-10T09:02:00Z", "ann", "c", "3"),
        changed("2024-03-10T09:03:00Z", "cid", "d", "4"),
        changed("2024-03-10T09:04:00Z", "ben", "e", "5"),
    }
    groups := GroupByActor(events)
    require.Len(t, groups, 3)
    assert.Equal(t, []string{"ann", "ben", "cid"}, []string{groups[0].Actor, groups[1].Actor, groups[2].Actor})

    var flat []domain.ChangeEvent
    for _, g := range groups { flat = append(flat, g.Entries...) }
    want := []domain.ChangeEvent{events[0], events[2], events[1], events[4], events[3]}
    if diff := cmp.Diff(want, flat); diff != "" { t.Fatalf("flattened groups (-want +got):\n%s", diff) }
    assert.Empty(t, GroupByActor(nil))
}

func newTestTransformer(bl domain.FieldBlacklist) *Transformer {
    return NewTransformer(bl, "https://jira.example.com/browse/", zerolog.Nop())
}

func TestTransform_NewIssueYieldsCreatedEvent(t *testing.T) {
    w := domain.Window{Start: day("2024-03-10"), End: day("2024-03-11")}
    ts := at("2024-03-10T14:00:00Z")
    raw := domain.RawIssue{Key: "PRJ-1", Summary: "  Fix &amp; ship\nfast ", Created: ts, Updated: ts, Creator: "Ann"}

    ih, ok := newTestTransformer(nil).Transform(raw, w)
    require.True(t, ok)
    assert.Equal(t, "Fix & ship fast", ih.Summary)
    assert.Equal(t, "https://jira.example.com/browse/PRJ-1", ih.URL)
    require.Len(t, ih.Events, 1)
    assert.Equal(t, domain.ActionCreated, ih.Events[0].Action)
    assert.Equal(t, "Ann", ih.Events[0].Actor)
    require.Len(t, ih.Groups, 1)
    assert.Equal(t, "Ann", ih.Groups[0].Actor)
}

func TestTransform_RepeatedAssigneeKeepsLatest(t *testing.T) {
    w := domain.Window{Start: day("2024-03-10"), End: day("2024-03-12")}
    raw := domain.RawIssue{
        Key: "PRJ-2", Summary: "Thing",
        Created: at("2024-01-01T00:00:00Z"), Updated: at("2024-03-11T17:00:00Z"),
        Parent: &domain.RawParent{Key: "PRJ-0", Summary: "Epic &lt;1&gt;"},
        Histories: []domain.RawHistory{
            {Created: at("2024-02-01T10:00:00Z"), Author: "old", Items: []domain.RawItem{{Field: "status", ToString: "Open"}}},
            {Created: at("2024-03-10T10:00:00Z"), Author: "ann", Items: []domain.RawItem{{Field: "assignee", ToString: "bob"}}},
            {Created: at("2024-03-11T10:00:00Z"), Author: "ben", Items: []domain.RawItem{{Field: "assignee", FromString: "bob", ToString: "carl"}}},
            {Created: at("2024-03-11T17:00:00Z"), Author: "ann", Items: []domain.RawItem{{Field: "assignee", FromString: "carl", ToString: "O&#39;Neil"}}},
        },
    }
    ih, ok := newTestTransformer(domain.NewFieldBlacklist()).Transform(raw, w)
    require.True(t, ok)
    require.Len(t, ih.Events, 1)
    e := ih.Events[0]
    assert.Equal(t, "assignee", e.Field)
    assert.Equal(t, at("2024-03-11T17:00:00Z"), e.Time)
    assert.Equal(t, "O'Neil", e.ToValue)
    require.NotNil(t, ih.Parent)
    assert.Equal(t, "Epic <1>", ih.Parent.Summary)
}

func TestTransform_OnlyBlacklistedActivityDropsIssue(t *testing.T) {
    w := domain.Window{Start: day("2024-03-10"), End: day("2024-03-11")}
    raw := domain.RawIssue{
        Key: "PRJ-3", Created: at("2024-01-01T00:00:00Z"), Updated: at("2024-03-10T12:00:00Z"),
        Histories: []domain.RawHistory{
            {Created: at("2024-03-10T10:00:00Z"), Author: "ann", Items: []domain.RawItem{{Field: "Rank"}}},
            {Created: at("2024-03-10T12:00:00Z"), Author: "ann", Items: []domain.RawItem{{Field: "Rank"}}},
        },
    }
    tr := newTestTransformer(domain.NewFieldBlacklist("rank"))
    _, ok := tr.Transform(raw, w)
    assert.False(t, ok)
    assert.Empty(t, tr.TransformAll([]domain.RawIssue{raw}, w))
}

func TestTransformAll_KeepsTrackerOrder(t *testing.T) {
    w := domain.Window{Start: day("2024-03-10"), End: day("2024-03-11")}
    mk := func(key string) domain.RawIssue {
        ts := at("2024-03-10T08:00:00Z")
        return domain.RawIssue{Key: key, Created: ts, Updated: ts, Creator: "ann"}
    }
    stale := domain.RawIssue{Key: "B", Created: at("2023-01-01T00:00:00Z"), Updated: at("2024-03-10T00:00:00Z")}
    got := newTestTransformer(nil).TransformAll([]domain.RawIssue{mk("C"), stale, mk("A")}, w)
    require.Len(t, got, 2)
    assert.Equal(t, "C", got[0].Key)
    assert.Equal(t, "A", got[1].Key)
}
