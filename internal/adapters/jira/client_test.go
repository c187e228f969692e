package jira

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/HamedShams/jira-changed/internal/errs"
)

const searchBody = `{
  "total": 1,
  "issues": [{
    "key": "PRJ-1",
    "fields": {
      "summary": "Fix &amp; ship",
      "created": "2024-03-10T09:00:00.000+0000",
      "updated": "2024-03-11T10:30:00.000+0000",
      "creator": {"displayName": "Alice", "name": "alice"},
      "parent": {"key": "PRJ-0", "fields": {"summary": "Epic"}}
    },
    "changelog": {"histories": [{
      "created": "2024-03-11T10:30:00.000+0000",
      "author": {"name": "bob"},
      "items": [{"field": "status", "fromString": "Open", "toString": null}]
    }]}
  }]
}`

func testClient(t *testing.T, h http.HandlerFunc, mut func(*config.Config)) *Client {
    t.Helper()
    srv := httptest.NewServer(h)
    t.Cleanup(srv.Close)
    cfg := config.Config{JiraBaseURL: srv.URL + "/", JiraUsername: "bot", JiraPassword: "pw", JiraAPIVersion: "2", JiraMaxResults: 200, HTTPTimeout: 5 * time.Second}
    if mut != nil { mut(&cfg) }
    return NewClient(cfg, zerolog.Nop())
}

func window() domain.Window {
    return domain.Window{
        Start: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
        End:   time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
    }
}

func TestJQL(t *testing.T) {
    assert.Equal(t, "project = PRJ AND updated > 2024-03-10 AND updated < 2024-03-12", JQL("PRJ", window()))
}

func TestQueryIssues_V2DecodesIssues(t *testing.T) {
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, http.MethodGet, r.Method)
        assert.Equal(t, "/rest/api/2/search", r.URL.Path)
        assert.Equal(t, "project = PRJ AND updated > 2024-03-10 AND updated < 2024-03-12", r.URL.Query().Get("jql"))
        assert.Equal(t, "200", r.URL.Query().Get("maxResults"))
        assert.Equal(t, "changelog", r.URL.Query().Get("expand"))
        u, p, ok := r.BasicAuth()
        assert.True(t, ok)
        assert.Equal(t, "bot", u)
        assert.Equal(t, "pw", p)
        _, _ = w.Write([]byte(searchBody))
    }, nil)

    got, err := c.QueryIssues(context.Background(), domain.Query{Project: "PRJ", Window: window()})
    require.NoError(t, err)
    require.Len(t, got, 1)
    is := got[0]
    assert.Equal(t, "PRJ-1", is.Key)
    assert.Equal(t, "Fix &amp; ship", is.Summary)
    assert.Equal(t, "Alice", is.Creator)
    assert.True(t, is.Created.Equal(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)))
    require.NotNil(t, is.Parent)
    assert.Equal(t, "PRJ-0", is.Parent.Key)
    require.Len(t, is.Histories, 1)
    assert.Equal(t, "bob", is.Histories[0].Author)
    assert.Equal(t, domain.RawItem{Field: "status", FromString: "Open"}, is.Histories[0].Items[0])
}

func TestQueryIssues_V3PostsWithBearer(t *testing.T) {
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, http.MethodPost, r.Method)
        assert.Equal(t, "/rest/api/3/search", r.URL.Path)
        assert.Equal(t, "Bearer pat-1", r.Header.Get("Authorization"))
        var body map[string]any
        require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
        assert.Equal(t, []any{"changelog"}, body["expand"])
        _, _ = w.Write([]byte(`{"issues":[]}`))
    }, func(c *config.Config) { c.JiraAPIVersion = "3"; c.JiraPAT = "pat-1" })

    got, err := c.QueryIssues(context.Background(), domain.Query{Project: "PRJ", Window: window()})
    require.NoError(t, err)
    assert.Empty(t, got)
}

func TestQueryIssues_ClassifiesStatus(t *testing.T) {
    cases := []struct {
        status int
        body   string
        kind   errs.UpstreamKind
        msg    string
    }{
        {http.StatusUnauthorized, `token abc rejected`, errs.UpstreamUnauthorized, "ERROR: unauthorized, can not connect to jira, check the credentials"},
        {http.StatusForbidden, ``, errs.UpstreamUnauthorized, "ERROR: unauthorized, can not connect to jira, check the credentials"},
        {http.StatusBadRequest, `{"errorMessages":["The value 'NOPE' does not exist for the field 'project'."]}`, errs.UpstreamGeneric, "ERROR: The value 'NOPE' does not exist for the field 'project'."},
        {http.StatusInternalServerError, `oops`, errs.UpstreamGeneric, "ERROR: jira request failed (status 500)"},
    }
    for _, tc := range cases {
        c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
            w.WriteHeader(tc.status)
            _, _ = w.Write([]byte(tc.body))
        }, nil)
        _, err := c.QueryIssues(context.Background(), domain.Query{Project: "NOPE", Window: window()})
        var up *errs.UpstreamError
        require.True(t, errors.As(err, &up), "status %d", tc.status)
        assert.Equal(t, tc.kind, up.Kind)
        assert.Equal(t, tc.status, up.Status)
        assert.Equal(t, tc.msg, errs.UserMessage(err))
    }
}

func TestQueryIssues_NoRetryOnFailure(t *testing.T) {
    calls := 0
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        calls++
        w.WriteHeader(http.StatusServiceUnavailable)
    }, nil)
    _, err := c.QueryIssues(context.Background(), domain.Query{Project: "PRJ", Window: window()})
    require.Error(t, err)
    assert.Equal(t, 1, calls)
}

func TestQueryIssues_UnreachableHost(t *testing.T) {
    srv := httptest.NewServer(http.NotFoundHandler())
    base := srv.URL
    srv.Close()
    c := NewClient(config.Config{JiraBaseURL: base, JiraPAT: "x", JiraAPIVersion: "2", HTTPTimeout: time.Second}, zerolog.Nop())
    _, err := c.QueryIssues(context.Background(), domain.Query{Project: "PRJ", Window: window()})
    var up *errs.UpstreamError
    require.True(t, errors.As(err, &up))
    assert.Equal(t, errs.UpstreamUnreachable, up.Kind)
}

func TestQueryIssues_EmptyProject(t *testing.T) {
    c := NewClient(config.Config{JiraBaseURL: "http://x"}, zerolog.Nop())
    _, err := c.QueryIssues(context.Background(), domain.Query{})
    assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
    want := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
    for _, s := range []string{"2024-03-10T09:00:00.000+0000", "2024-03-10T12:00:00+0300", "2024-03-10T09:00:00Z"} {
        assert.True(t, parseTime(s).Equal(want), s)
    }
    assert.True(t, parseTime("garbage").IsZero())
}
