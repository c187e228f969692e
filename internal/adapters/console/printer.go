package console

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "strings"
    "sync"

    "github.com/HamedShams/jira-changed/internal/domain"
)

const rule = "----"

// Printer is the stdout transport used by the CLI.
type Printer struct {
    mu   sync.Mutex
    w    io.Writer
    json bool
}

func NewPrinter(w io.Writer, asJSON bool) *Printer { return &Printer{w: w, json: asJSON} }

func (p *Printer) SendText(_ context.Context, to, text string) error {
    p.mu.Lock(); defer p.mu.Unlock()
    if p.json { return p.encode(map[string]any{"to": to, "kind": "notice", "text": text}) }
    _, err := fmt.Fprintln(p.w, text)
    return err
}

// SendBatch prints one batch followed by a rule, or one JSON line.
func (p *Printer) SendBatch(_ context.Context, to string, b domain.Batch) error {
    p.mu.Lock(); defer p.mu.Unlock()
    if p.json {
        out := map[string]any{"to": to, "kind": b.Kind.String(), "size": b.Size}
        if b.Kind == domain.PayloadCard { out["cards"] = b.Cards } else { out["text"] = b.Text }
        return p.encode(out)
    }
    body := b.Text
    if b.Kind == domain.PayloadCard {
        parts := make([]string, 0, len(b.Payloads))
        for _, pl := range b.Payloads { parts = append(parts, pl.Text) }
        body = strings.Join(parts, "\n")
    }
    _, err := fmt.Fprintf(p.w, "%s\n%s\n", body, rule)
    return err
}

func (p *Printer) encode(v any) error {
    enc := json.NewEncoder(p.w)
    enc.SetEscapeHTML(false)
    return enc.Encode(v)
}
