package jobs

import (
    "bytes"
    "context"
    "errors"
    "testing"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/HamedShams/jira-changed/internal/config"
)

type countingService struct{ calls int }

func (s *countingService) RunScheduledDigest(context.Context) error { s.calls++; return nil }

type fakeLocker struct {
    free       bool
    err        error
    releaseErr error
    released   int
}

func (l *fakeLocker) TryAdvisoryLock(context.Context, int64) (func(context.Context) error, bool, error) {
    if l.err != nil || !l.free { return nil, false, l.err }
    return func(context.Context) error { l.released++; return l.releaseErr }, true, nil
}

func newTestCron(t *testing.T, svc service, lock Locker) *Cron {
    t.Helper()
    cr, err := NewCron(config.Config{DigestCron: "0 9 * * 1-5"}, zerolog.Nop(), svc, lock)
    require.NoError(t, err)
    return cr
}

func TestRun_TakesAndReleasesLock(t *testing.T) {
    svc := &countingService{}
    lock := &fakeLocker{free: true}
    cr := newTestCron(t, svc, lock)
    cr.run(context.Background())
    assert.Equal(t, 1, svc.calls)
    assert.Equal(t, 1, lock.released)

    cr.run(context.Background())
    assert.Equal(t, 2, svc.calls)
    assert.Equal(t, 2, lock.released)
}

func TestRun_ReleaseErrorIsLogged(t *testing.T) {
    var buf bytes.Buffer
    svc := &countingService{}
    lock := &fakeLocker{free: true, releaseErr: errors.New("advisory unlock returned false")}
    cr, err := NewCron(config.Config{DigestCron: "0 9 * * 1-5"}, zerolog.New(&buf), svc, lock)
    require.NoError(t, err)
    cr.run(context.Background())
    assert.Equal(t, 1, lock.released)
    assert.Contains(t, buf.String(), "cron: unlock failed")
    assert.Contains(t, buf.String(), "advisory unlock returned false")
}

func TestRun_SkipsWhenLockHeldOrFails(t *testing.T) {
    svc := &countingService{}
    held := &fakeLocker{free: false}
    failing := &fakeLocker{err: errors.New("db down")}
    newTestCron(t, svc, held).run(context.Background())
    newTestCron(t, svc, failing).run(context.Background())
    assert.Equal(t, 0, svc.calls)
    assert.Equal(t, 0, held.released+failing.released)
}

func TestRun_WithoutLocker(t *testing.T) {
    svc := &countingService{}
    newTestCron(t, svc, nil).run(context.Background())
    assert.Equal(t, 1, svc.calls)
}

func TestNewCron_RejectsBadSpec(t *testing.T) {
    _, err := NewCron(config.Config{DigestCron: "whenever"}, zerolog.Nop(), &countingService{}, nil)
    assert.Error(t, err)
}
