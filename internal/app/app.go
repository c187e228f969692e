package app

import (
    "context"
    "io"
    "os"

    "github.com/HamedShams/jira-changed/internal/adapters/console"
    "github.com/HamedShams/jira-changed/internal/adapters/jira"
    "github.com/HamedShams/jira-changed/internal/adapters/slack"
    "github.com/HamedShams/jira-changed/internal/adapters/telegram"
    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/render"
    "github.com/HamedShams/jira-changed/internal/repo"
    "github.com/HamedShams/jira-changed/internal/services"
    "github.com/rs/zerolog"
)

// App holds the wired collaborators shared by the server and the CLI.
type App struct {
    Svc      *services.Service
    Telegram *telegram.Client
    // Repo is nil when DB_DSN is empty.
    Repo *repo.Repository
    db   *repo.DB
}

// Options tune wiring for the CLI.
type Options struct {
    Stdout io.Writer
    JSON   bool
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opt Options) (*App, error) {
    a := &App{}
    var ledger services.RunLedger
    if cfg.DBDSN != "" {
        db, err := repo.Open(ctx, cfg, log)
        if err != nil { return nil, err }
        a.db = db
        a.Repo = repo.NewRepository(db, log)
        if err := a.Repo.EnsureSchema(ctx); err != nil { db.Close(); return nil, err }
        ledger = a.Repo
    }

    r, err := render.New(cfg.RenderMode, cfg.TemplateFile, cfg.Location)
    if err != nil { a.Close(); return nil, err }

    var chat services.Dispatcher
    switch cfg.ChatProvider {
    case config.ProviderSlack:
        chat = slack.NewClient(cfg, log)
    case config.ProviderStdout:
        w := opt.Stdout
        if w == nil { w = os.Stdout }
        chat = console.NewPrinter(w, opt.JSON)
    default:
        a.Telegram = telegram.NewClient(cfg, log)
        chat = a.Telegram
    }

    a.Svc = services.New(cfg, log, jira.NewClient(cfg, log), chat, r, ledger)
    return a, nil
}

func (a *App) Close() {
    if a.db != nil { a.db.Close() }
}
