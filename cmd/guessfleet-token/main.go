// Command guessfleet-token mints viewer and operator tokens for the scoreboard API.
//
//	guessfleet-token --subject ops-laptop --role operator --ttl 8h
//
// The signing secret is read from the coordinator's configuration file
// (GUESSFLEET_CONFIG) and GUESSFLEET_JWT_SECRET.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/nerrad567/guessfleet/internal/auth"
	"github.com/nerrad567/guessfleet/internal/infrastructure/config"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "guessfleet-token",
		Usage: "mint a bearer token for the guessfleet scoreboard API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "coordinator configuration file",
				Sources: cli.EnvVars("GUESSFLEET_CONFIG"),
			},
			&cli.StringFlag{
				Name:     "subject",
				Aliases:  []string{"s"},
				Usage:    "who the token is issued to",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "role",
				Value: string(auth.RoleOperator),
				Usage: "viewer or operator",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime (defaults to security.jwt.token_ttl)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return mint(out, cfg, cmd.String("subject"), auth.Role(cmd.String("role")), cmd.Duration("ttl"))
		},
	}
}

// mint writes one signed token to out. ttl <= 0 uses the configured lifetime.
func mint(out io.Writer, cfg *config.Config, subject string, role auth.Role, ttl time.Duration) error {
	if cfg.Security.JWT.Secret == "" {
		return fmt.Errorf("security.jwt.secret is not set")
	}
	if ttl <= 0 {
		ttl = cfg.GetTokenTTL()
	}

	token, err := auth.GenerateToken(subject, role, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
