package repo

import (
    "context"
    "errors"
    "time"

    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

// DigestLockKey serialises the scheduled digest across replicas.
const DigestLockKey int64 = 424242

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*DB, error) {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { return nil, err }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { pool.Close(); return nil, err }
    return &DB{Pool: pool, log: log}, nil
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           uuid PRIMARY KEY,
    source       text NOT NULL,
    chat         text NOT NULL DEFAULT '',
    project      text NOT NULL DEFAULT '',
    window_start date,
    window_end   date,
    issues       int NOT NULL DEFAULT 0,
    batches      int NOT NULL DEFAULT 0,
    status       text NOT NULL,
    error        text NOT NULL DEFAULT '',
    started_at   timestamptz NOT NULL DEFAULT now(),
    finished_at  timestamptz
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs(started_at DESC);`

func (r *Repository) EnsureSchema(ctx context.Context) error {
    _, err := r.db.Pool.Exec(ctx, schema)
    return err
}

// TryAdvisoryLock takes a session advisory lock on one pooled connection and
// keeps that connection until release is called, so unlock runs in the same
// session. release is nil when the lock was not taken.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (release func(context.Context) error, ok bool, err error) {
    conn, err := r.db.Pool.Acquire(ctx)
    if err != nil { return nil, false, err }
    if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
        conn.Release()
        return nil, false, err
    }
    if !ok { conn.Release(); return nil, false, nil }
    return func(ctx context.Context) error { return advisoryUnlock(ctx, conn, key) }, true, nil
}

// advisoryUnlock unlocks on the locking connection. If that fails the session
// is closed instead, which drops every lock it holds.
func advisoryUnlock(ctx context.Context, conn *pgxpool.Conn, key int64) error {
    var unlocked bool
    err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&unlocked)
    if err == nil && !unlocked { err = errors.New("advisory unlock returned false") }
    if err == nil { conn.Release(); return nil }
    raw := conn.Hijack()
    if cerr := raw.Close(ctx); cerr != nil { return errors.Join(err, cerr) }
    return err
}

func (r *Repository) StartRun(ctx context.Context, run domain.Run) error {
    const q = `INSERT INTO runs(id, source, chat, project, window_start, window_end, status, started_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8)`
    _, err := r.db.Pool.Exec(ctx, q, run.ID, run.Source, run.Chat, run.Project,
        run.WindowStart, run.WindowEnd, run.Status, run.StartedAt)
    return err
}

func (r *Repository) FinishRun(ctx context.Context, run domain.Run) error {
    const q = `UPDATE runs SET finished_at=now(), issues=$2, batches=$3, status=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, run.ID, run.Issues, run.Batches, run.Status, run.Error)
    return err
}

// LastRun returns the most recently started run, or nil when there is none.
func (r *Repository) LastRun(ctx context.Context) (*domain.Run, error) {
    const q = `SELECT id::text, source, chat, project, window_start, window_end,
        issues, batches, status, error, started_at, finished_at
        FROM runs ORDER BY started_at DESC LIMIT 1`
    run := &domain.Run{}
    var ws, we *time.Time
    err := r.db.Pool.QueryRow(ctx, q).Scan(&run.ID, &run.Source, &run.Chat, &run.Project, &ws, &we,
        &run.Issues, &run.Batches, &run.Status, &run.Error, &run.StartedAt, &run.FinishedAt)
    if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
    if err != nil { return nil, err }
    if ws != nil { run.WindowStart = *ws }
    if we != nil { run.WindowEnd = *we }
    return run, nil
}
