/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "fmt"
    "strconv"
    "time"

    "github.com/HamedShams/jira-changed/internal/changelog"
    "github.com/HamedShams/jira-changed/internal/command"
    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/dispatch"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/HamedShams/jira-changed/internal/errs"
    "github.com/google/uuid"
    "github.com/rs/zerolog"
)

const (
    SourceChat     = "chat"
    SourceSchedule = "schedule"
    SourceAdmin    = "admin"
    SourceCLI      = "cli"
)

// IssueQuerier is the tracker search capability.
type IssueQuerier interface {
    QueryIssues(ctx context.Context, q domain.Query) ([]domain.RawIssue, error)
}

// Dispatcher is the chat transport: one SendBatch call per packed batch.
type Dispatcher interface {
    SendText(ctx context.Context, to, text string) error
    SendBatch(ctx context.Context, to string, b domain.Batch) error
}

type Renderer interface {
    Render(issues []domain.IssueHistory) ([]domain.Payload, error)
}

// RunLedger records invocations. It is optional.
type RunLedger interface {
    StartRun(ctx context.Context, run domain.Run) error
    FinishRun(ctx context.Context, run domain.Run) error
    LastRun(ctx context.Context) (*domain.Run, error)
}

type Service struct {
    cfg    config.Config
    log    zerolog.Logger
    jira   IssueQuerier
    chat   Dispatcher
    render Renderer
    tr     *changelog.Transformer
    ledger RunLedger
    now    func() time.Time
}

func New(cfg config.Config, log zerolog.Logger, jira IssueQuerier, chat Dispatcher, r Renderer, ledger RunLedger) *Service {
    return &Service{
        cfg:    cfg,
        log:    log,
        jira:   jira,
        chat:   chat,
        render: r,
        tr:     changelog.NewTransformer(cfg.Blacklist, cfg.BrowseURL(), log),
        ledger: ledger,
        now:    time.Now,
    }
}

func (s *Service) location() *time.Location {
    if s.cfg.Location != nil { return s.cfg.Location }
    return time.UTC
}

func (s *Service) clock() time.Time { return s.now().In(s.location()) }

// Result summarises one pipeline run.
type Result struct {
    RunID   string
    Issues  int
    Batches int
}

// HandleMessage routes one chat message. Text that is not a command is ignored.
func (s *Service) HandleMessage(ctx context.Context, to, text string) error {
    req, err := command.Parse(text, s.clock())
    if err != nil {
        s.log.Info().Str("chat", to).Err(err).Msg("rejected command")
        return s.chat.SendText(ctx, to, errs.UserMessage(err))
    }
    switch req.Kind {
    case command.Help:
        return s.SendHelp(ctx, to)
    case command.Changed:
        _, err := s.RunChanged(ctx, SourceChat, to, req)
        return err
    }
    return nil
}

// SendHelp replies with the command grammar.
func (s *Service) SendHelp(ctx context.Context, to string) error {
    if to == "" { return nil }
    return s.chat.SendText(ctx, to, command.HelpText())
}

// RunChanged runs validate, fetch, transform, render, pack and dispatch for one
// request, sequentially, and reports failures back to the chat. The returned
// error is nil for an empty result.
func (s *Service) RunChanged(ctx context.Context, source, to string, req command.Request) (Result, error) {
    now := s.clock()
    if req.Project == "" { req.Project = s.cfg.JiraDefaultProject }
    run := domain.Run{
        ID:          uuid.NewString(),
        Source:      source,
        Chat:        to,
        Project:     req.Project,
        WindowStart: req.Window.Start,
        WindowEnd:   req.Window.End,
        Status:      domain.RunRunning,
        StartedAt:   now,
    }
    log := s.log.With().Str("run_id", run.ID).Str("source", source).Str("chat", to).Str("project", req.Project).
        Time("window_start", req.Window.Start).Time("window_end", req.Window.End).Logger()
    res := Result{RunID: run.ID}

    if err := command.ValidateWindow(req.Window, now); err != nil {
        log.Info().Err(err).Msg("invalid window")
        return res, s.chat.SendText(ctx, to, errs.UserMessage(err))
    }
    s.startRun(ctx, log, run)

    if source != SourceSchedule {
        ack := fmt.Sprintf("Hang tight while I look up %s to %s", command.FriendlyDay(req.Window.Start, now), command.FriendlyDay(req.Window.End, now))
        if err := s.chat.SendText(ctx, to, ack); err != nil {
            log.Error().Err(err).Msg("ack send failed")
            return res, s.finishRun(ctx, log, run, res, err)
        }
    }

    err := s.pipeline(ctx, log, to, req, &res)
    switch {
    case errors.Is(err, errs.ErrEmptyResult):
        log.Info().Msg("nothing found")
        if source != SourceSchedule { err = s.chat.SendText(ctx, to, errs.UserMessage(errs.ErrEmptyResult)) } else { err = nil }
        run.Status = domain.RunEmpty
        return res, s.finishRun(ctx, log, run, res, err)
    case err != nil:
        log.Error().Err(err).Int("issues", res.Issues).Int("batches", res.Batches).Msg("changed issues failed")
        if sendErr := s.chat.SendText(ctx, to, errs.UserMessage(err)); sendErr != nil {
            log.Error().Err(sendErr).Msg("error reply failed")
        }
        return res, s.finishRun(ctx, log, run, res, err)
    }
    log.Info().Int("issues", res.Issues).Int("batches", res.Batches).Msg("changed issues sent")
    return res, s.finishRun(ctx, log, run, res, nil)
}

func (s *Service) pipeline(ctx context.Context, log zerolog.Logger, to string, req command.Request, res *Result) error {
    raws, err := s.jira.QueryIssues(ctx, domain.Query{Project: req.Project, Window: req.Window})
    if err != nil { return fmt.Errorf("query issues: %w", err) }
    issues := s.tr.TransformAll(raws, req.Window)
    res.Issues = len(issues)
    log.Debug().Int("fetched", len(raws)).Int("issues", len(issues)).Msg("transformed")
    if len(issues) == 0 { return errs.ErrEmptyResult }

    payloads, err := s.render.Render(issues)
    if err != nil { return err }
    batches := dispatch.Pack(payloads, s.cfg.MessageLimit)
    for i, b := range batches {
        if err := s.chat.SendBatch(ctx, to, b); err != nil { return fmt.Errorf("send batch %d/%d: %w", i+1, len(batches), err) }
        res.Batches++
    }
    return nil
}

func (s *Service) startRun(ctx context.Context, log zerolog.Logger, run domain.Run) {
    if s.ledger == nil { return }
    if err := s.ledger.StartRun(ctx, run); err != nil { log.Warn().Err(err).Msg("ledger start failed") }
}

// finishRun records the outcome and passes err through.
func (s *Service) finishRun(ctx context.Context, log zerolog.Logger, run domain.Run, res Result, err error) error {
    if s.ledger == nil { return err }
    run.Issues, run.Batches = res.Issues, res.Batches
    switch {
    case err != nil:
        run.Status, run.Error = domain.RunFailed, err.Error()
    case run.Status == domain.RunRunning:
        run.Status = domain.RunOK
    }
    if lerr := s.ledger.FinishRun(ctx, run); lerr != nil { log.Warn().Err(lerr).Msg("ledger finish failed") }
    return err
}

// DefaultRequest is "changed" with no arguments: yesterday to today, default project.
func (s *Service) DefaultRequest() command.Request {
    today := domain.Day(s.clock(), s.location())
    return command.Request{
        Kind:    command.Changed,
        Window:  domain.Window{Start: today.AddDate(0, 0, -1), End: today},
        Project: s.cfg.JiraDefaultProject,
    }
}

// Destinations lists the chats the scheduled digest posts to.
func (s *Service) Destinations() []string {
    switch s.cfg.ChatProvider {
    case config.ProviderSlack:
        return s.cfg.SlackChannels
    case config.ProviderTelegram:
        out := make([]string, 0, len(s.cfg.TelegramChatIDs))
        for _, id := range s.cfg.TelegramChatIDs { out = append(out, strconv.FormatInt(id, 10)) }
        return out
    }
    return nil
}

// RunScheduledDigest posts the default digest to every configured chat. A
// failing chat does not stop the others.
func (s *Service) RunScheduledDigest(ctx context.Context) error {
    return s.runDigest(ctx, SourceSchedule)
}

// RunNow is the admin-triggered digest.
func (s *Service) RunNow(ctx context.Context) error {
    return s.runDigest(ctx, SourceAdmin)
}

func (s *Service) runDigest(ctx context.Context, source string) error {
    dests := s.Destinations()
    if len(dests) == 0 {
        s.log.Warn().Str("source", source).Msg("digest: no destinations configured")
        return nil
    }
    req := s.DefaultRequest()
    var errList []error
    for _, to := range dests {
        if _, err := s.RunChanged(ctx, source, to, req); err != nil { errList = append(errList, fmt.Errorf("chat %s: %w", to, err)) }
    }
    return errors.Join(errList...)
}

// LastRun returns the latest ledger row, or nil without a ledger.
func (s *Service) LastRun(ctx context.Context) (*domain.Run, error) {
    if s.ledger == nil { return nil, nil }
    return s.ledger.LastRun(ctx)
}
