// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/agentsec/secrets/cmd/app/commands"
)

var version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "agentsec",
		Usage:   "Secrets management for agent sandboxes",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations for the SQL audit store",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "generate-keys",
				Usage: "Generate a master key and an audit signing key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kms-key-uri",
						Value: "",
						Usage: "KMS keeper URI to wrap the master key (e.g., base64key://..., gcpkms://...)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunGenerateKeys(ctx, commands.DefaultIO().Writer, cmd.String("kms-key-uri"))
				},
			},
			{
				Name:  "verify-audit-log",
				Usage: "Verify the cryptographic integrity of the audit log",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "start",
						Aliases: []string{"s"},
						Value:   "",
						Usage:   "Start of the range (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)",
					},
					&cli.StringFlag{
						Name:    "end",
						Aliases: []string{"e"},
						Value:   "",
						Usage:   "End of the range (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunVerifyAuditLog(
						ctx,
						commands.DefaultIO().Writer,
						cmd.String("start"),
						cmd.String("end"),
						cmd.String("format"),
					)
				},
			},
			{
				Name:  "scan-leaks",
				Usage: "Scan logs, environment and git history for leaked secrets",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "log-file",
						Aliases: []string{"l"},
						Usage:   "Log file to scan (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "environment",
						Usage: "Scan the process environment",
					},
					&cli.StringFlag{
						Name:  "git-repo",
						Value: "",
						Usage: "Path to a git repository whose history is scanned",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunScanLeaks(
						ctx,
						commands.DefaultIO().Writer,
						cmd.StringSlice("log-file"),
						cmd.Bool("environment"),
						cmd.String("git-repo"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
