/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "bytes"
    "context"
    "crypto/subtle"
    "io"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/HamedShams/jira-changed/internal/adapters/slack"
    "github.com/HamedShams/jira-changed/internal/adapters/telegram"
    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/rs/zerolog"
)

// jobTimeout bounds work started by a request but run after the response.
const jobTimeout = 5 * time.Minute

type service interface {
    HandleMessage(ctx context.Context, to, text string) error
    RunNow(ctx context.Context) error
    LastRun(ctx context.Context) (*domain.Run, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
    wg  sync.WaitGroup
    now func() time.Time
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc, now: time.Now}
}

// async runs fn detached from the request so the reply is not held up and the
// request context being cancelled does not abort the run.
func (h *Handlers) async(what string, fn func(ctx context.Context) error) {
    h.wg.Add(1)
    go func(){
        defer h.wg.Done()
        ctx, cancel := context.WithTimeout(context.Background(), jobTimeout); defer cancel()
        if err := fn(ctx); err != nil { h.log.Error().Err(err).Str("job", what).Msg("background job failed") }
    }()
}

// Wait blocks until background jobs started by handlers are done.
func (h *Handlers) Wait() { h.wg.Wait() }

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RequireAdmin accepts "Authorization: Bearer <ADMIN_TOKEN>" or X-Admin-Token.
// With no token configured every admin request is refused.
func (h *Handlers) RequireAdmin(c *gin.Context) {
    got := c.GetHeader("X-Admin-Token")
    if auth := c.GetHeader("Authorization"); got == "" && strings.HasPrefix(auth, "Bearer ") {
        got = strings.TrimPrefix(auth, "Bearer ")
    }
    if !secretOK(got, h.cfg.AdminToken) {
        c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
        return
    }
    c.Next()
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.LastRun(c.Request.Context())
    if err != nil {
        h.log.Error().Err(err).Msg("last run lookup failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
        return
    }
    if lr == nil {
        c.JSON(http.StatusNotFound, gin.H{"error": "no runs recorded"})
        return
    }
    c.JSON(http.StatusOK, lr)
}

func (h *Handlers) RunNow(c *gin.Context) {
    h.async("admin-run", h.svc.RunNow)
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func secretOK(got, want string) bool {
    return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (h *Handlers) TelegramWebhook(c *gin.Context) {
    // Accept either header secret (preferred) or path secret
    if !secretOK(c.GetHeader("X-Telegram-Bot-Api-Secret-Token"), h.cfg.TelegramWebhookSecret) && !secretOK(c.Param("secret"), h.cfg.TelegramWebhookSecret) {
        c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
        return
    }
    var upd telegram.Update
    if err := c.ShouldBindJSON(&upd); err != nil || upd.Message == nil || upd.Message.Text == "" {
        c.JSON(http.StatusOK, gin.H{"ok": true})
        return
    }
    chatID := upd.Message.Chat.ID
    // accept only configured chats if provided
    allowed := len(h.cfg.TelegramChatIDs) == 0
    for _, id := range h.cfg.TelegramChatIDs { if id == chatID { allowed = true; break } }
    if !allowed {
        h.log.Warn().Int64("chat", chatID).Msg("telegram message from unknown chat ignored")
        c.JSON(http.StatusOK, gin.H{"ok": true})
        return
    }
    to, text := strconv.FormatInt(chatID, 10), upd.Message.Text
    h.async("telegram", func(ctx context.Context) error { return h.svc.HandleMessage(ctx, to, text) })
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SlackCommand serves slash commands such as "/jira changed 3" or "/changed 3".
// Requests must carry a valid Slack signature over the raw body.
func (h *Handlers) SlackCommand(c *gin.Context) {
    raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "bad body"})
        return
    }
    if err := slack.VerifySignature(h.cfg.SlackSigningSecret, c.Request.Header, raw, h.now()); err != nil {
        h.log.Warn().Err(err).Str("ip", c.ClientIP()).Msg("slack command rejected")
        c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
        return
    }
    c.Request.Body = io.NopCloser(bytes.NewReader(raw))
    var cmd slack.Command
    if err := c.ShouldBind(&cmd); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "bad form"})
        return
    }
    // keep the leading slash: bare words are ignored by the command grammar
    text := strings.TrimSpace(cmd.Command + " " + cmd.Text)
    to := cmd.ChannelID
    h.log.Info().Str("chat", to).Str("user", cmd.UserName).Str("text", text).Msg("slack command")
    h.async("slack", func(ctx context.Context) error { return h.svc.HandleMessage(ctx, to, text) })
    c.Status(http.StatusOK)
}
