// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/config"
	"github.com/insightlab/insightctl/internal/meta"
)

// LoginCommandAction prompts for a bearer token (no echo), verifies it
// against the backend and stores it in the config file.
func LoginCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "login") {
		return nil
	}

	host := cmd.String("host")
	fmt.Printf("Token for %s: ", host)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	token := string(raw)
	if token == "" {
		return fmt.Errorf("empty token")
	}

	client, err := api.NewClient(host, token)
	if err != nil {
		return err
	}

	// A cheap authenticated call proves the token before we persist it.
	apps, err := client.Apps(ctx)
	if err != nil {
		return api.Friendly(err, api.ErrorContext{
			Host:      host,
			Operation: "verify token",
			Resource:  "app",
		})
	}

	path, err := writeToken(token)
	if err != nil {
		return err
	}

	fmt.Printf("Token verified (%d apps visible) and saved to %s\n", len(apps), path)
	return nil
}

// writeToken merges the token into the config file, creating it when absent.
func writeToken(token string) (string, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return "", err
	}

	data := map[string]interface{}{}
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return "", fmt.Errorf("config file %s is not valid yaml: %w", path, err)
		}
	}
	data["token"] = token

	out, err := yaml.Marshal(data)
	if err != nil {
		return "", err
	}

	// Tokens are credentials, keep the file owner-only.
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// LoginCommandBuilder constructs the cli.Command for "login".
func LoginCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "store a backend token in the config file",
		UsageText: `insightctl login [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: []cli.Flag{
			NewHostFlag("login", meta.Config.Source),
			tldrFlag,
		},
		Action: LoginCommandAction,
	}
}
