package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nlukyanov/mailbox-sizes/auth"
	"github.com/nlukyanov/mailbox-sizes/cmd"
	"github.com/nlukyanov/mailbox-sizes/config"
	"github.com/nlukyanov/mailbox-sizes/directory"
	"github.com/nlukyanov/mailbox-sizes/filter"
	"github.com/nlukyanov/mailbox-sizes/imap"
	"github.com/nlukyanov/mailbox-sizes/mailbox"
	"github.com/nlukyanov/mailbox-sizes/progress"
	"github.com/nlukyanov/mailbox-sizes/report"
	"github.com/nlukyanov/mailbox-sizes/runner"
	"github.com/nlukyanov/mailbox-sizes/stats"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "mailbox-sizes",
		Short: "Report per-user mailbox message counts and total sizes for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting mailbox-sizes",
				"org", cfg.OrgID,
				"imapHost", cfg.IMAPHost,
				"maxSessions", cfg.MaxSessions,
				"output", cfg.OutputPath)

			return run(cfg, logger)
		},
	}

	config.RegisterFlags(rootCmd)
	rootCmd.AddCommand(cmd.NewTopCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	dir := directory.NewClient(directory.Options{
		OrgID: cfg.OrgID,
		Token: cfg.DirectoryToken,
	}, logger)

	users, err := dir.Users(ctx)
	if err != nil {
		return fmt.Errorf("list directory users: %w", err)
	}

	sink, err := report.NewSink(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("close report", "err", err)
		}
	}()

	f, err := filter.New(filter.Options{
		IncludeEmail: cfg.IncludeEmail,
		ExcludeEmail: cfg.ExcludeEmail,
	})
	if err != nil {
		return fmt.Errorf("build user filter: %w", err)
	}

	tokens := auth.NewProvider(auth.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})

	walker := &mailbox.Walker{
		Tokens: func(ctx context.Context, user directory.User) (string, error) {
			return tokens.TokenFor(ctx, user.ID)
		},
		Dial: func(ctx context.Context, email, token string) (mailbox.Session, error) {
			sess, err := imap.Dial(ctx, imap.Options{
				Host:               cfg.IMAPHost,
				Port:               cfg.IMAPPort,
				Timeout:            cfg.Timeout,
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			})
			if err != nil {
				return nil, err
			}
			if err := sess.Authenticate(email, token); err != nil {
				_ = sess.Close()
				return nil, err
			}
			return sess, nil
		},
		PageSize: mailbox.DefaultPageSize,
		Logger:   logger,
	}

	r := runner.New(ctx, cfg, walker, sink, f, logger)
	reporter := stats.NewReporter(r, logger)

	bar := progress.New(len(users), cfg.LogLevel)
	r.SubscribeStats("progress-bar", bar.Subscriber)

	started := time.Now()
	r.Run(users)
	bar.Stop()

	summary := reporter.Summary()
	logger.Info("report written",
		"path", cfg.OutputPath,
		"users", len(users),
		"rows", summary.Rows(),
		"duration", time.Since(started))
	return nil
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mailbox-sizes-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
