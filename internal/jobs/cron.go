package jobs

import (
    "context"
    "time"

    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/repo"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type service interface { RunScheduledDigest(ctx context.Context) error }

// Locker is the cross-replica guard. Nil means a single replica. A taken lock
// is given back through release.
type Locker interface {
    TryAdvisoryLock(ctx context.Context, key int64) (release func(context.Context) error, ok bool, err error)
}

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    lock Locker
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, lock Locker) (*Cron, error) {
    loc := cfg.Location
    if loc == nil { loc = time.UTC }
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, lock: lock, c: c}
    if _, err := c.AddFunc(cfg.DigestCron, cr.digest); err != nil { return nil, err }
    return cr, nil
}

func (cr *Cron) Start(){ cr.c.Start() }

// Stop waits for a running digest to finish.
func (cr *Cron) Stop(){ <-cr.c.Stop().Done() }

func (cr *Cron) digest(){
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute); defer cancel()
    cr.run(ctx)
}

func (cr *Cron) run(ctx context.Context) {
    if cr.lock != nil {
        release, ok, err := cr.lock.TryAdvisoryLock(ctx, repo.DigestLockKey)
        if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
        if !ok { cr.log.Info().Msg("cron: already running elsewhere"); return }
        defer func(){
            uctx, cancel := context.WithTimeout(context.Background(), 10*time.Second); defer cancel()
            if err := release(uctx); err != nil { cr.log.Error().Err(err).Msg("cron: unlock failed") }
        }()
    }
    cr.log.Info().Msg("cron: changed issues digest")
    if err := cr.svc.RunScheduledDigest(ctx); err != nil { cr.log.Error().Err(err).Msg("cron: digest failed") }
}
