/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/HamedShams/jira-changed/internal/dispatch"
    "github.com/HamedShams/jira-changed/internal/domain"
    "github.com/HamedShams/jira-changed/internal/errs"
    "github.com/robfig/cron/v3"
    "gopkg.in/yaml.v3"
)

const (
    ProviderTelegram = "telegram"
    ProviderSlack    = "slack"
    // ProviderStdout prints batches instead of sending them (CLI use).
    ProviderStdout = "stdout"
)

type Config struct {
    AppEnv   string
    LogLevel string
    TZ       string
    HTTPAddr string

    DBDSN string

    PublicBaseURL string
    // AdminToken guards /admin; empty disables those routes.
    AdminToken string

    JiraHost           string
    JiraBaseURL        string
    JiraPAT            string
    JiraUsername       string
    JiraPassword       string
    JiraDefaultProject string
    JiraAPIVersion     string
    JiraMaxResults     int

    // Blacklist is parsed from JIRA_ACTION_BLACKLIST and never mutated afterwards.
    Blacklist domain.FieldBlacklist

    ChatProvider string

    TelegramToken         string
    TelegramWebhookSecret string
    TelegramChatIDs       []int64

    SlackToken        string
    SlackSigningSecret string
    SlackChannels     []string

    MessageLimit int
    RenderMode   string
    TemplateFile string

    DigestCron  string
    HTTPTimeout time.Duration

    Location *time.Location
}

// fileConfig is the optional YAML overlay; environment variables win over it.
type fileConfig struct {
    TZ                 string   `yaml:"tz"`
    JiraHost           string   `yaml:"jira_host"`
    JiraDefaultProject string   `yaml:"jira_default_project"`
    JiraAPIVersion     string   `yaml:"jira_api_version"`
    Blacklist          []string `yaml:"blacklist"`
    ChatProvider       string   `yaml:"chat_provider"`
    TelegramChatIDs    []int64  `yaml:"telegram_chat_ids"`
    SlackChannels      []string `yaml:"slack_channels"`
    MessageLimit       int      `yaml:"message_limit"`
    RenderMode         string   `yaml:"render_mode"`
    TemplateFile       string   `yaml:"template_file"`
    DigestCron         string   `yaml:"digest_cron"`
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func atoi(key string, def int) int {
    v := os.Getenv(key)
    if v == "" { return def }
    i, err := strconv.Atoi(v)
    if err != nil { return def }
    return i
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func parseInt64s(csv string) []int64 {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]int64, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        n, err := strconv.ParseInt(p, 10, 64)
        if err == nil { out = append(out, n) }
    }
    return out
}

func parseStrings(csv string) []string {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        out = append(out, p)
    }
    return out
}

// ParseBlacklist accepts "|" or "," separated field names.
func ParseBlacklist(raw string) domain.FieldBlacklist {
    return domain.NewFieldBlacklist(strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' })...)
}

func readFile(path string) (fileConfig, error) {
    var fc fileConfig
    if path == "" { return fc, nil }
    data, err := os.ReadFile(path)
    if err != nil { return fc, &errs.ConfigError{Key: "CONFIG_FILE", Reason: err.Error()} }
    if err := yaml.Unmarshal(data, &fc); err != nil { return fc, &errs.ConfigError{Key: "CONFIG_FILE", Reason: "invalid yaml: " + err.Error()} }
    return fc, nil
}

func or(v, def string) string {
    if v != "" { return v }
    return def
}

// Load reads CONFIG_FILE (if set) and the environment, then validates.
func Load() (Config, error) {
    fc, err := readFile(os.Getenv("CONFIG_FILE"))
    if err != nil { return Config{}, err }

    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        LogLevel: getenv("LOG_LEVEL", "info"),
        TZ:       getenv("APP_TZ", or(fc.TZ, "UTC")),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        DBDSN: getenv("DB_DSN", ""),

        PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
        AdminToken:    getenv("ADMIN_TOKEN", ""),

        JiraHost:           getenv("JIRA_HOST", fc.JiraHost),
        JiraBaseURL:        getenv("JIRA_BASE_URL", ""),
        JiraPAT:            getenv("JIRA_PAT", ""),
        JiraUsername:       getenv("JIRA_USERNAME", ""),
        JiraPassword:       getenv("JIRA_PASSWORD", ""),
        JiraDefaultProject: getenv("JIRA_DEFAULT_PROJECT", fc.JiraDefaultProject),
        JiraAPIVersion:     getenv("JIRA_API_VERSION", or(fc.JiraAPIVersion, "2")),
        JiraMaxResults:     atoi("JIRA_MAX_RESULTS", 200),

        ChatProvider: strings.ToLower(getenv("CHAT_PROVIDER", or(fc.ChatProvider, ProviderTelegram))),

        TelegramToken:         getenv("TELEGRAM_BOT_TOKEN", ""),
        TelegramWebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
        TelegramChatIDs:       parseInt64s(getenv("TELEGRAM_CHAT_IDS", "")),

        SlackToken:        getenv("SLACK_BOT_TOKEN", ""),
        SlackSigningSecret: getenv("SLACK_SIGNING_SECRET", ""),
        SlackChannels:     parseStrings(getenv("SLACK_CHANNELS", "")),

        MessageLimit: atoi("MESSAGE_LIMIT", dispatch.DefaultLimit),
        RenderMode:   getenv("RENDER_MODE", or(fc.RenderMode, "text")),
        TemplateFile: getenv("TEMPLATE_FILE", fc.TemplateFile),

        DigestCron:  getenv("DIGEST_CRON", fc.DigestCron),
        HTTPTimeout: dur("HTTP_TIMEOUT", 15*time.Second),
    }
    if len(cfg.TelegramChatIDs) == 0 { cfg.TelegramChatIDs = fc.TelegramChatIDs }
    if len(cfg.SlackChannels) == 0 { cfg.SlackChannels = fc.SlackChannels }
    if os.Getenv("MESSAGE_LIMIT") == "" && fc.MessageLimit != 0 { cfg.MessageLimit = fc.MessageLimit }

    if raw, ok := os.LookupEnv("JIRA_ACTION_BLACKLIST"); ok {
        cfg.Blacklist = ParseBlacklist(raw)
    } else {
        cfg.Blacklist = domain.NewFieldBlacklist(fc.Blacklist...)
    }
    if cfg.JiraBaseURL == "" && cfg.JiraHost != "" { cfg.JiraBaseURL = "https://" + cfg.JiraHost }

    return cfg, cfg.Validate()
}

// Validate checks everything the service needs before serving and resolves Location.
func (c *Config) Validate() error {
    if c.JiraBaseURL == "" { return &errs.ConfigError{Key: "JIRA_HOST", Reason: "required"} }
    if c.JiraPAT == "" && (c.JiraUsername == "" || c.JiraPassword == "") {
        return &errs.ConfigError{Key: "JIRA_USERNAME/JIRA_PASSWORD", Reason: "set both, or JIRA_PAT"}
    }
    if c.JiraDefaultProject == "" { return &errs.ConfigError{Key: "JIRA_DEFAULT_PROJECT", Reason: "required"} }
    if c.JiraAPIVersion != "2" && c.JiraAPIVersion != "3" { return &errs.ConfigError{Key: "JIRA_API_VERSION", Reason: "must be 2 or 3"} }
    switch c.ChatProvider {
    case ProviderTelegram:
        if c.TelegramToken == "" { return &errs.ConfigError{Key: "TELEGRAM_BOT_TOKEN", Reason: "required for telegram"} }
    case ProviderSlack:
        if c.SlackToken == "" { return &errs.ConfigError{Key: "SLACK_BOT_TOKEN", Reason: "required for slack"} }
    case ProviderStdout:
    default:
        return &errs.ConfigError{Key: "CHAT_PROVIDER", Reason: "unknown provider " + strconv.Quote(c.ChatProvider)}
    }
    if c.MessageLimit <= 0 { return &errs.ConfigError{Key: "MESSAGE_LIMIT", Reason: "must be positive"} }
    if c.RenderMode != "text" && c.RenderMode != "cards" { return &errs.ConfigError{Key: "RENDER_MODE", Reason: "must be text or cards"} }
    loc, err := time.LoadLocation(c.TZ)
    if err != nil { return &errs.ConfigError{Key: "APP_TZ", Reason: err.Error()} }
    c.Location = loc
    if c.DigestCron != "" {
        if _, err := cron.ParseStandard(c.DigestCron); err != nil { return &errs.ConfigError{Key: "DIGEST_CRON", Reason: err.Error()} }
    }
    return nil
}

// BrowseURL is the prefix for human issue links.
func (c Config) BrowseURL() string { return strings.TrimRight(c.JiraBaseURL, "/") + "/browse/" }
