package slack

import (
    "bytes"
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/HamedShams/jira-changed/internal/errs"
    "github.com/rs/zerolog"
)

const defaultAPIBase = "https://slack.com/api"

type Client struct {
    token   string
    apiBase string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{ token: cfg.SlackToken, apiBase: defaultAPIBase, http: &http.Client{ Timeout: cfg.HTTPTimeout }, log: log }
}

func (c *Client) WithAPIBase(base string) *Client {
    c.apiBase = strings.TrimRight(base, "/")
    return c
}

func (c *Client) SendText(ctx context.Context, channel, text string) error {
    return c.postMessage(ctx, map[string]any{"channel": channel, "text": text, "mrkdwn": false})
}

// SendBatch posts a text batch as the message body and a card batch as attachments.
func (c *Client) SendBatch(ctx context.Context, channel string, b domain.Batch) error {
    if b.Kind != domain.PayloadCard { return c.SendText(ctx, channel, b.Text) }
    return c.postMessage(ctx, map[string]any{"channel": channel, "attachments": b.Cards})
}

func (c *Client) postMessage(ctx context.Context, body map[string]any) error {
    if c.token == "" || body["channel"] == "" { return errors.New("slack: missing token or channel") }
    b, err := json.Marshal(body)
    if err != nil { return err }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat.postMessage", bytes.NewReader(b))
    if err != nil { return err }
    req.Header.Set("Content-Type", "application/json; charset=utf-8")
    req.Header.Set("Authorization", "Bearer "+c.token)
    resp, err := c.http.Do(req)
    if err != nil { return &errs.UpstreamError{Service: "slack", Kind: errs.UpstreamUnreachable, Err: err} }
    defer resp.Body.Close()
    raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
    if resp.StatusCode >= 300 {
        return &errs.UpstreamError{Service: "slack", Status: resp.StatusCode, Err: fmt.Errorf("slack chat.postMessage status=%d body=%s", resp.StatusCode, string(raw))}
    }
    // Slack answers 200 with ok=false for API level failures.
    var r struct {
        OK    bool   `json:"ok"`
        Error string `json:"error"`
    }
    if err := json.Unmarshal(raw, &r); err != nil { return &errs.UpstreamError{Service: "slack", Err: fmt.Errorf("decode response: %w", err)} }
    if !r.OK {
        kind := errs.UpstreamGeneric
        switch r.Error {
        case "invalid_auth", "not_authed", "account_inactive", "token_revoked":
            kind = errs.UpstreamUnauthorized
        }
        return &errs.UpstreamError{Service: "slack", Kind: kind, Err: fmt.Errorf("slack chat.postMessage: %s", r.Error)}
    }
    return nil
}

// MaxSignatureAge is how old a signed request may be before it is treated as a replay.
const MaxSignatureAge = 5 * time.Minute

var (
    ErrMissingSignature = errors.New("slack: missing signature headers")
    ErrStaleSignature   = errors.New("slack: request timestamp too old")
    ErrBadSignature     = errors.New("slack: signature mismatch")
)

// Sign returns the X-Slack-Signature value for body sent at ts.
func Sign(secret, ts string, body []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte("v0:" + ts + ":"))
    mac.Write(body)
    return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks X-Slack-Signature and X-Slack-Request-Timestamp
// against the raw request body.
func VerifySignature(secret string, h http.Header, body []byte, now time.Time) error {
    if secret == "" { return errors.New("slack: signing secret not configured") }
    ts, sig := h.Get("X-Slack-Request-Timestamp"), h.Get("X-Slack-Signature")
    if ts == "" || sig == "" { return ErrMissingSignature }
    sec, err := strconv.ParseInt(ts, 10, 64)
    if err != nil { return ErrMissingSignature }
    age := now.Sub(time.Unix(sec, 0))
    if age > MaxSignatureAge || age < -MaxSignatureAge { return ErrStaleSignature }
    if !hmac.Equal([]byte(sig), []byte(Sign(secret, ts, body))) { return ErrBadSignature }
    return nil
}

// Command is the slash-command form Slack posts to the bot.
type Command struct {
    ChannelID string `form:"channel_id"`
    UserName  string `form:"user_name"`
    Command   string `form:"command"`
    Text      string `form:"text"`
}
