package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "strings"

    "github.com/spf13/cobra"

    "github.com/HamedShams/jira-changed/internal/app"
    "github.com/HamedShams/jira-changed/internal/config"
    "github.com/HamedShams/jira-changed/internal/logger"
)

var Version = "dev"

func main() {
    rootCmd := &cobra.Command{
        Use:           "jira-changed",
        Short:         "Digest of recently changed Jira issues",
        Version:       Version,
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    rootCmd.AddCommand(changedCmd())
    rootCmd.AddCommand(checkConfigCmd())

    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

func changedCmd() *cobra.Command {
    var (
        asJSON   bool
        provider string
    )
    cmd := &cobra.Command{
        Use:   "changed [<date>] [<date>|<days>] [project]",
        Short: "Run the changed-issues digest once",
        Long: `Query Jira for issues changed in a window and deliver the packed digest.

With the default stdout provider every batch is printed followed by a rule.

Examples:
  jira-changed changed
  jira-changed changed 7 OPS
  jira-changed changed 2024-03-01 2024-03-08 --json
  jira-changed changed 3 --provider slack`,
        Args: cobra.MaximumNArgs(3),
        RunE: func(cmd *cobra.Command, args []string) error {
            if err := os.Setenv("CHAT_PROVIDER", provider); err != nil { return err }
            cfg, err := config.Load()
            if err != nil { return err }
            lg := logger.NewWithWriter(cfg, os.Stderr)

            ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
            defer stop()
            a, err := app.New(ctx, cfg, lg, app.Options{Stdout: cmd.OutOrStdout(), JSON: asJSON})
            if err != nil { return err }
            defer a.Close()

            to := "cli"
            if dests := a.Svc.Destinations(); provider != config.ProviderStdout {
                if len(dests) == 0 { return fmt.Errorf("no destinations configured for %s", provider) }
                to = dests[0]
            }
            text := strings.TrimSpace("jira changed " + strings.Join(args, " "))
            return a.Svc.HandleMessage(ctx, to, text)
        },
    }
    cmd.Flags().BoolVar(&asJSON, "json", false, "print batches as JSON lines (stdout provider)")
    cmd.Flags().StringVar(&provider, "provider", config.ProviderStdout, "delivery: stdout, telegram or slack")
    return cmd
}

func checkConfigCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "check-config",
        Short: "Validate the environment configuration and exit",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := config.Load()
            if err != nil { return err }
            fmt.Fprintf(cmd.OutOrStdout(), "ok: jira=%s project=%s provider=%s limit=%d blacklist=%s\n",
                cfg.JiraBaseURL, cfg.JiraDefaultProject, cfg.ChatProvider, cfg.MessageLimit, strings.Join(cfg.Blacklist.Fields(), "|"))
            return nil
        },
    }
}
