/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/HamedShams/jira-changed/internal/errs"
    "github.com/rs/zerolog"
)

var searchFields = []string{"summary", "created", "updated", "creator", "parent"}

type Client struct {
    baseURL    string
    token      string
    user       string
    pass       string
    http       *http.Client
    log        zerolog.Logger
    apiVer     string
    maxResults int
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL:    cfg.JiraBaseURL,
        token:      cfg.JiraPAT,
        user:       cfg.JiraUsername,
        pass:       cfg.JiraPassword,
        http:       &http.Client{ Timeout: cfg.HTTPTimeout },
        log:        log,
        apiVer:     cfg.JiraAPIVersion,
        maxResults: cfg.JiraMaxResults,
    }
}

// JQL selects issues of project updated strictly between the window days.
func JQL(project string, w domain.Window) string {
    return fmt.Sprintf("project = %s AND updated > %s AND updated < %s",
        project, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// QueryIssues runs the changed-issues search with the changelog expanded.
func (c *Client) QueryIssues(ctx context.Context, q domain.Query) ([]domain.RawIssue, error) {
    if q.Project == "" { return nil, errors.New("jira: empty project") }
    return c.Search(ctx, JQL(q.Project, q.Window))
}

func (c *Client) Search(ctx context.Context, jql string) ([]domain.RawIssue, error) {
    if jql == "" { return nil, errors.New("jira: empty jql") }
    max := c.maxResults
    if max <= 0 { max = 200 }
    var (
        method = http.MethodGet
        u      string
        body   any
    )
    if c.apiVer == "3" {
        method = http.MethodPost
        u = c.apiURL("/rest/api/3/search", nil)
        body = map[string]any{"jql": jql, "maxResults": max, "expand": []string{"changelog"}, "fields": searchFields}
    } else {
        q := url.Values{}
        q.Set("jql", jql)
        q.Set("maxResults", fmt.Sprint(max))
        q.Set("expand", "changelog")
        q.Set("fields", strings.Join(searchFields, ","))
        u = c.apiURL("/rest/api/2/search", q)
    }
    var res searchResponse
    if err := c.doJSON(ctx, method, u, body, &res); err != nil { return nil, err }
    if res.Total > len(res.Issues) {
        c.log.Warn().Int("total", res.Total).Int("returned", len(res.Issues)).Str("jql", jql).Msg("jira search truncated")
    }
    out := make([]domain.RawIssue, 0, len(res.Issues))
    for _, it := range res.Issues { out = append(out, it.toRaw()) }
    return out, nil
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body, out any) error {
    if c.baseURL == "" { return errors.New("jira: empty baseURL") }
    var r io.Reader
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return err }
        r = bytes.NewReader(b)
    }
    req, err := http.NewRequestWithContext(ctx, method, u, r)
    if err != nil { return err }
    req.Header.Set("Accept", "application/json")
    if body != nil { req.Header.Set("Content-Type", "application/json") }
    if c.token != "" {
        req.Header.Set("Authorization", "Bearer "+c.token)
    } else if c.user != "" && c.pass != "" {
        req.SetBasicAuth(c.user, c.pass)
    }
    resp, err := c.http.Do(req)
    if err != nil { return classifyTransport(err) }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
        c.log.Debug().Int("status", resp.StatusCode).Str("body", strings.TrimSpace(string(b))).Msg("jira api error")
        return classifyStatus(resp.StatusCode, b)
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return &errs.UpstreamError{Service: "jira", Kind: errs.UpstreamGeneric, Err: fmt.Errorf("decode response: %w", err)}
    }
    return nil
}

func classifyTransport(err error) error {
    kind := errs.UpstreamGeneric
    var dnsErr *net.DNSError
    var opErr *net.OpError
    if errors.As(err, &dnsErr) || errors.As(err, &opErr) { kind = errs.UpstreamUnreachable }
    return &errs.UpstreamError{Service: "jira", Kind: kind, Err: err}
}

func classifyStatus(status int, body []byte) error {
    e := &errs.UpstreamError{Service: "jira", Kind: errs.UpstreamGeneric, Status: status,
        Err: fmt.Errorf("jira api status=%d body=%s", status, strings.TrimSpace(string(body)))}
    switch status {
    case http.StatusUnauthorized, http.StatusForbidden:
        e.Kind = errs.UpstreamUnauthorized
        return e
    }
    var je struct{ ErrorMessages []string `json:"errorMessages"` }
    if json.Unmarshal(body, &je) == nil && len(je.ErrorMessages) > 0 {
        e.Detail = strings.Join(je.ErrorMessages, " ")
    }
    return e
}

// ---- wire format ----

type searchResponse struct {
    Total  int         `json:"total"`
    Issues []issueJSON `json:"issues"`
}

type userJSON struct {
    DisplayName string `json:"displayName"`
    Name        string `json:"name"`
}

func (u *userJSON) display() string {
    if u == nil { return "" }
    if u.DisplayName != "" { return u.DisplayName }
    return u.Name
}

type issueJSON struct {
    Key    string `json:"key"`
    Fields struct {
        Summary string    `json:"summary"`
        Created string    `json:"created"`
        Updated string    `json:"updated"`
        Creator *userJSON `json:"creator"`
        Parent  *struct {
            Key    string `json:"key"`
            Fields struct {
                Summary string `json:"summary"`
            } `json:"fields"`
        } `json:"parent"`
    } `json:"fields"`
    Changelog struct {
        Histories []struct {
            Created string    `json:"created"`
            Author  *userJSON `json:"author"`
            Items   []struct {
                Field      string `json:"field"`
                FromString string `json:"fromString"`
                ToString   string `json:"toString"`
            } `json:"items"`
        } `json:"histories"`
    } `json:"changelog"`
}

func (i issueJSON) toRaw() domain.RawIssue {
    raw := domain.RawIssue{
        Key:     i.Key,
        Summary: i.Fields.Summary,
        Created: parseTime(i.Fields.Created),
        Updated: parseTime(i.Fields.Updated),
        Creator: i.Fields.Creator.display(),
    }
    if p := i.Fields.Parent; p != nil {
        raw.Parent = &domain.RawParent{Key: p.Key, Summary: p.Fields.Summary}
    }
    for _, h := range i.Changelog.Histories {
        rh := domain.RawHistory{Created: parseTime(h.Created), Author: h.Author.display()}
        for _, it := range h.Items {
            rh.Items = append(rh.Items, domain.RawItem{Field: it.Field, FromString: it.FromString, ToString: it.ToString})
        }
        raw.Histories = append(raw.Histories, rh)
    }
    return raw
}

var timeLayouts = []string{"2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", time.RFC3339Nano, time.RFC3339}

func parseTime(s string) time.Time {
    if s == "" { return time.Time{} }
    for _, l := range timeLayouts {
        if t, err := time.Parse(l, s); err == nil { return t }
    }
    return time.Time{}
}
