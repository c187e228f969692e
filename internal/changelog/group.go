package changelog

import "github.com/HamedShams/jira-changed/internal/domain"

// actorIndex is an insertion-ordered map from actor name to group.
type actorIndex struct {
    pos    map[string]int
    groups []domain.ActorGroup
}

func (a *actorIndex) add(e domain.ChangeEvent) {
    i, ok := a.pos[e.Actor]
    if !ok {
        i = len(a.groups)
        a.pos[e.Actor] = i
        a.groups = append(a.groups, domain.ActorGroup{Actor: e.Actor})
    }
    a.groups[i].Entries = append(a.groups[i].Entries, e)
}

// GroupByActor partitions events by actor. Groups appear in first-seen order and
// each group keeps its events in input order.
func GroupByActor(events []domain.ChangeEvent) []domain.ActorGroup {
    idx := actorIndex{pos: map[string]int{}}
    for _, e := range events { idx.add(e) }
    return idx.groups
}
