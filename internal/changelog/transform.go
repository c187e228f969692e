package changelog

import (
    "strings"

    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/rs/zerolog"
    "golang.org/x/net/html"
)

type Transformer struct {
    blacklist domain.FieldBlacklist
    browseURL string
    log       zerolog.Logger
}

// NewTransformer builds a transformer. browseURL is the issue link prefix, e.g.
// "https://jira.example.com/browse/".
func NewTransformer(blacklist domain.FieldBlacklist, browseURL string, log zerolog.Logger) *Transformer {
    return &Transformer{blacklist: blacklist, browseURL: browseURL, log: log}
}

// Transform derives the in-window, deduplicated and actor-grouped history of one
// issue. ok is false when nothing reportable is left.
func (t *Transformer) Transform(raw domain.RawIssue, w domain.Window) (domain.IssueHistory, bool) {
    out := domain.IssueHistory{
        Key:     raw.Key,
        Summary: singleLine(raw.Summary),
        URL:     t.browseURL + raw.Key,
    }
    if raw.Parent != nil {
        out.Parent = &domain.ParentRef{Key: raw.Parent.Key, Summary: singleLine(raw.Parent.Summary)}
    }

    var events []domain.ChangeEvent
    // never edited since creation
    if !raw.Created.IsZero() && raw.Created.Equal(raw.Updated) {
        events = append(events, domain.ChangeEvent{Time: raw.Created, Action: domain.ActionCreated, Actor: raw.Creator})
    }
    for _, h := range raw.Histories {
        if !InWindow(h.Created, w) { continue }
        for _, it := range h.Items {
            events = append(events, domain.ChangeEvent{
                Time:      h.Created,
                Action:    domain.ActionChanged,
                Actor:     h.Author,
                Field:     it.Field,
                FromValue: html.UnescapeString(it.FromString),
                ToValue:   html.UnescapeString(it.ToString),
            })
        }
    }

    out.Events = Reduce(events, t.blacklist)
    if len(out.Events) == 0 {
        t.log.Debug().Str("issue", raw.Key).Int("raw_events", len(events)).Msg("issue dropped: no reportable activity")
        return domain.IssueHistory{}, false
    }
    out.Groups = GroupByActor(out.Events)
    return out, true
}

// TransformAll keeps tracker order and skips issues without reportable activity.
func (t *Transformer) TransformAll(raws []domain.RawIssue, w domain.Window) []domain.IssueHistory {
    out := make([]domain.IssueHistory, 0, len(raws))
    for _, r := range raws {
        if ih, ok := t.Transform(r, w); ok { out = append(out, ih) }
    }
    return out
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func singleLine(s string) string {
    return lineBreaks.Replace(html.UnescapeString(strings.TrimSpace(s)))
}
