package render

import (
    "bytes"
    "embed"
    "encoding/json"
    "fmt"
    "os"
    "strings"
    "text/template"
    "time"

    "github.com/HamedShams/jira-changed/internal/dispatch"
    "github.com/HamedShams/jira-changed/internal/domain"
)

//go:embed templates/*.tmpl
var builtin embed.FS

const (
    ModeText  = "text"
    ModeCards = "cards"
)

type Renderer struct {
    tmpl *template.Template
    loc  *time.Location
}

// New loads the issue template. A non-empty file overrides the built-in
// template selected by mode.
func New(mode, file string, loc *time.Location) (*Renderer, error) {
    if loc == nil { loc = time.UTC }
    r := &Renderer{loc: loc}
    var src []byte
    var err error
    switch {
    case file != "":
        src, err = os.ReadFile(file)
    case mode == ModeCards:
        src, err = builtin.ReadFile("templates/changed-issues-card.tmpl")
    default:
        src, err = builtin.ReadFile("templates/changed-issues.tmpl")
    }
    if err != nil { return nil, fmt.Errorf("render: read template: %w", err) }
    r.tmpl, err = template.New("changed-issues").Funcs(r.funcs()).Parse(string(src))
    if err != nil { return nil, fmt.Errorf("render: parse template: %w", err) }
    return r, nil
}

func (r *Renderer) funcs() template.FuncMap {
    return template.FuncMap{
        "clock": func(t time.Time) string { return t.In(r.loc).Format("2006-01-02 15:04") },
        "json": func(v any) (string, error) {
            b, err := json.Marshal(v)
            return string(b), err
        },
        "entries": func(es []domain.ChangeEvent) string {
            lines := make([]string, 0, len(es))
            for _, e := range es { lines = append(lines, describe(e)) }
            return strings.Join(lines, "\n")
        },
    }
}

func describe(e domain.ChangeEvent) string {
    if e.IsCreated() { return "created the issue" }
    if e.FromValue == "" { return fmt.Sprintf("%s → %s", e.Field, e.ToValue) }
    return fmt.Sprintf("%s: %s → %s", e.Field, e.FromValue, e.ToValue)
}

// Render renders one message per issue and classifies each as text or card.
func (r *Renderer) Render(issues []domain.IssueHistory) ([]domain.Payload, error) {
    out := make([]domain.Payload, 0, len(issues))
    for _, ih := range issues {
        var buf bytes.Buffer
        if err := r.tmpl.Execute(&buf, ih); err != nil { return nil, fmt.Errorf("render %s: %w", ih.Key, err) }
        out = append(out, dispatch.Classify(strings.TrimRight(buf.String(), "\n")))
    }
    return out, nil
}
