package dispatch

import (
    "encoding/json"
    "strings"
    "unicode/utf8"

    "github.com/HamedShams/jira-changed/internal/domain"
)

// DefaultLimit is the per-message ceiling chat providers recommend.
const DefaultLimit = 4000

// Classify turns one rendered message into a payload. A message that parses as
// a JSON object once line breaks are removed is a card; anything else is text.
func Classify(rendered string) domain.Payload {
    flat := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(rendered)
    var card domain.Card
    if err := json.Unmarshal([]byte(flat), &card); err == nil && card != nil {
        return domain.Payload{Kind: domain.PayloadCard, Text: rendered, Card: card}
    }
    return domain.TextPayload(rendered)
}

// EncodedSize is the size a payload contributes to a batch of the given kind:
// characters for text, serialized JSON length for cards.
func EncodedSize(p domain.Payload, kind domain.PayloadKind) int {
    if kind == domain.PayloadCard {
        b, err := json.Marshal(p.Card)
        if err != nil { return utf8.RuneCountInString(p.Text) }
        return len(b)
    }
    return utf8.RuneCountInString(textOf(p))
}

func textOf(p domain.Payload) string {
    if p.Text != "" || p.Kind == domain.PayloadText { return p.Text }
    b, _ := json.Marshal(p.Card)
    return string(b)
}

// Pack greedily packs payloads, in order, into batches whose summed payload
// size stays within limit. A payload larger than limit gets a batch of its own.
// Only an all-card input is packed as cards; anything else is packed as text,
// payloads joined by a newline. limit <= 0 disables the ceiling.
func Pack(payloads []domain.Payload, limit int) []domain.Batch {
    if len(payloads) == 0 { return nil }
    kind := domain.PayloadCard
    for _, p := range payloads {
        if p.Kind != domain.PayloadCard { kind = domain.PayloadText; break }
    }

    var batches []domain.Batch
    var cur *domain.Batch
    for _, p := range payloads {
        size := EncodedSize(p, kind)
        if cur == nil || (limit > 0 && cur.Size+size > limit) {
            batches = append(batches, domain.Batch{Kind: kind})
            cur = &batches[len(batches)-1]
        }
        cur.Payloads = append(cur.Payloads, p)
        cur.Size += size
    }

    for i := range batches {
        b := &batches[i]
        if kind == domain.PayloadCard {
            b.Cards = make([]domain.Card, 0, len(b.Payloads))
            for _, p := range b.Payloads { b.Cards = append(b.Cards, p.Card) }
            continue
        }
        parts := make([]string, 0, len(b.Payloads))
        for _, p := range b.Payloads { parts = append(parts, textOf(p)) }
        b.Text = strings.Join(parts, "\n")
    }
    return batches
}
