/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"

    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/HamedShams/jira-changed/internal/errs"
    "github.com/rs/zerolog"
)

const (
    defaultAPIBase = "https://api.telegram.org"
    // maxMessageRunes is the Bot API hard cap on sendMessage text.
    maxMessageRunes = 4096
)

type Client struct {
    token   string
    apiBase string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{ token: cfg.TelegramToken, apiBase: defaultAPIBase, http: &http.Client{ Timeout: cfg.HTTPTimeout }, log: log }
}

// WithAPIBase points the client at another Bot API host (tests, local bot-api server).
func (c *Client) WithAPIBase(base string) *Client {
    c.apiBase = strings.TrimRight(base, "/")
    return c
}

// chatID sends numeric ids as numbers and anything else (@channel) as-is.
func chatID(to string) any {
    if n, err := strconv.ParseInt(to, 10, 64); err == nil { return n }
    return to
}

// SendText sends without parse_mode so issue summaries never break markdown
// parsing. Text over the Bot API cap goes out as consecutive messages.
func (c *Client) SendText(ctx context.Context, to, text string) error {
    if c.token == "" || to == "" { return errors.New("telegram: missing token or chat id") }
    for _, part := range chunkText(text, maxMessageRunes) {
        body := map[string]any{"chat_id": chatID(to), "text": part, "disable_web_page_preview": true}
        if err := c.call(ctx, "sendMessage", body); err != nil { return err }
    }
    return nil
}

// chunkText splits text into chunks of up to max runes, breaking on line boundaries when it can.
func chunkText(s string, max int) []string {
    if max <= 0 || len([]rune(s)) <= max { return []string{s} }
    var chunks []string
    var cur []rune
    flush := func() {
        if len(cur) > 0 { chunks = append(chunks, string(cur)); cur = nil }
    }
    for _, ln := range strings.Split(s, "\n") {
        r := []rune(ln)
        if len(r) > max {
            flush()
            for i := 0; i < len(r); i += max {
                j := i + max
                if j > len(r) { j = len(r) }
                chunks = append(chunks, string(r[i:j]))
            }
            continue
        }
        extra := len(r)
        if len(cur) > 0 { extra++ }
        if len(cur)+extra > max { flush() }
        if len(cur) > 0 { cur = append(cur, '\n') }
        cur = append(cur, r...)
    }
    flush()
    return chunks
}

// SendBatch delivers one packed batch as one message. Telegram has no
// attachments, so card batches are flattened to text.
func (c *Client) SendBatch(ctx context.Context, to string, b domain.Batch) error {
    if b.Kind == domain.PayloadCard { return c.SendText(ctx, to, FlattenCards(b.Cards)) }
    return c.SendText(ctx, to, b.Text)
}

// FlattenCards renders attachment-style cards as plain text blocks.
func FlattenCards(cards []domain.Card) string {
    blocks := make([]string, 0, len(cards))
    for _, card := range cards {
        var lines []string
        for _, k := range []string{"pretext", "title", "title_link", "text"} {
            if s, ok := card[k].(string); ok && s != "" { lines = append(lines, s) }
        }
        if fields, ok := card["fields"].([]any); ok {
            for _, f := range fields {
                m, ok := f.(map[string]any)
                if !ok { continue }
                title, _ := m["title"].(string)
                value, _ := m["value"].(string)
                lines = append(lines, title)
                if value != "" { lines = append(lines, value) }
            }
        }
        if len(lines) == 0 {
            if s, ok := card["fallback"].(string); ok { lines = append(lines, s) }
        }
        blocks = append(blocks, strings.Join(lines, "\n"))
    }
    return strings.Join(blocks, "\n\n")
}

// SetWebhook registers the webhook URL and secret with Telegram
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, secretToken string) error {
    if c.token == "" || webhookURL == "" || secretToken == "" { return errors.New("telegram: missing token, url or secret") }
    body := map[string]any{
        "url":                  webhookURL,
        "secret_token":         secretToken,
        "drop_pending_updates": true,
        "allowed_updates":      []string{"message"},
    }
    return c.call(ctx, "setWebhook", body)
}

func (c *Client) call(ctx context.Context, method string, body any) error {
    b, err := json.Marshal(body)
    if err != nil { return err }
    url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
    if err != nil { return err }
    req.Header.Set("Content-Type", "application/json")
    resp, err := c.http.Do(req)
    if err != nil { return &errs.UpstreamError{Service: "telegram", Kind: errs.UpstreamUnreachable, Err: stripToken(err, c.token)} }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
        kind := errs.UpstreamGeneric
        if resp.StatusCode == http.StatusUnauthorized { kind = errs.UpstreamUnauthorized }
        return &errs.UpstreamError{Service: "telegram", Kind: kind, Status: resp.StatusCode,
            Err: fmt.Errorf("telegram %s status=%d body=%s", method, resp.StatusCode, string(bodyBytes))}
    }
    return nil
}

// stripToken keeps the bot token (part of every URL) out of logged errors.
func stripToken(err error, token string) error {
    if token == "" { return err }
    return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}

// Update is the subset of a Bot API update the webhook handles.
type Update struct {
    Message *struct {
        Chat struct { ID int64 `json:"id"` } `json:"chat"`
        Text string `json:"text"`
    } `json:"message"`
}
