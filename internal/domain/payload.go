package domain

type PayloadKind int

const (
    PayloadText PayloadKind = iota
    PayloadCard
)

func (k PayloadKind) String() string {
    if k == PayloadCard { return "card" }
    return "text"
}

// Card is an opaque structured chat attachment.
type Card map[string]any

// Payload is one rendered message. Text always holds the rendered string so a
// card can fall back to plain delivery.
type Payload struct {
    Kind PayloadKind
    Text string
    Card Card
}

func TextPayload(s string) Payload { return Payload{Kind: PayloadText, Text: s} }

// Batch is one outbound send. Exactly one of Text or Cards is set.
type Batch struct {
    Kind     PayloadKind
    Text     string
    Cards    []Card
    Payloads []Payload
    Size     int
}
