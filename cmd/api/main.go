/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/HamedShams/jira-changed/internal/app"
    "github.com/HamedShams/jira-changed/internal/config"
    apihttp "github.com/HamedShams/jira-changed/internal/http"
    "github.com/HamedShams/jira-changed/internal/jobs"
    "github.com/HamedShams/jira-changed/internal/logger"
    "github.com/rs/zerolog/log"
    "golang.org/x/sync/errgroup"
)

func main() {
    cfg, err := config.Load()
    if err != nil { log.Fatal().Err(err).Msg("invalid configuration") }
    lg := logger.New(cfg)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    a, err := app.New(ctx, cfg, lg, app.Options{})
    if err != nil { lg.Fatal().Err(err).Msg("startup failed") }
    defer a.Close()

    handlers := apihttp.NewHandlers(cfg, lg, a.Svc)
    srv := &http.Server{Addr: cfg.HTTPAddr, Handler: apihttp.NewRouter(cfg, lg, handlers), ReadHeaderTimeout: 10 * time.Second}

    // Register Telegram webhook only if PUBLIC_BASE_URL is HTTPS
    if a.Telegram != nil && cfg.TelegramWebhookSecret != "" && strings.HasPrefix(strings.ToLower(cfg.PublicBaseURL), "https://") {
        go func(){
            ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second); defer cancel()
            webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + "/telegram/webhook"
            if err := a.Telegram.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
                lg.Error().Err(err).Str("url", webhookURL).Msg("telegram setWebhook failed")
            } else {
                lg.Info().Str("url", webhookURL).Msg("telegram setWebhook ok")
            }
        }()
    } else if a.Telegram != nil && cfg.TelegramWebhookSecret == "" {
        lg.Warn().Msg("TELEGRAM_WEBHOOK_SECRET is empty; the webhook will reject every update")
    }

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        lg.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) { return err }
        return nil
    })
    if cfg.DigestCron != "" {
        var lock jobs.Locker
        if a.Repo != nil { lock = a.Repo }
        cron, err := jobs.NewCron(cfg, lg, a.Svc, lock)
        if err != nil { lg.Fatal().Err(err).Msg("cron setup failed") }
        cron.Start()
        lg.Info().Str("spec", cfg.DigestCron).Msg("digest scheduled")
        g.Go(func() error {
            <-gctx.Done()
            cron.Stop()
            return nil
        })
    }
    g.Go(func() error {
        <-gctx.Done()
        lg.Info().Msg("shutting down...")
        sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second); defer cancel()
        err := srv.Shutdown(sctx)
        handlers.Wait()
        return err
    })

    if err := g.Wait(); err != nil { lg.Error().Err(err).Msg("server stopped with error") }
}
