package domain

import "time"

const (
    RunRunning = "running"
    RunOK      = "ok"
    RunEmpty   = "empty"
    RunFailed  = "failed"
)

// Run is one pipeline invocation as recorded by the optional ledger.
type Run struct {
    ID          string     `json:"id"`
    Source      string     `json:"source"`
    Chat        string     `json:"chat"`
    Project     string     `json:"project"`
    WindowStart time.Time  `json:"window_start"`
    WindowEnd   time.Time  `json:"window_end"`
    Issues      int        `json:"issues"`
    Batches     int        `json:"batches"`
    Status      string     `json:"status"`
    Error       string     `json:"error,omitempty"`
    StartedAt   time.Time  `json:"started_at"`
    FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
