package logger

import (
    "io"
    "os"
    "time"

    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

// New builds the process logger and installs it as the zerolog global.
func New(cfg config.Config) zerolog.Logger {
    return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg config.Config, w io.Writer) zerolog.Logger {
    level, err := zerolog.ParseLevel(cfg.LogLevel)
    if err != nil || cfg.LogLevel == "" { level = zerolog.InfoLevel }
    if cfg.AppEnv == "dev" {
        w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
    } else {
        zerolog.TimeFieldFormat = time.RFC3339
    }
    logger := zerolog.New(w).Level(level).With().Timestamp().Str("app", "jira-changed").Logger()
    log.Logger = logger
    return logger
}
