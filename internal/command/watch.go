// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"time"

	"github.com/apex/log"
	tea "github.com/charmbracelet/bubbletea"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/insightlab/insightctl/internal/meta"
	"github.com/insightlab/insightctl/internal/tui"
)

// WatchCommandAction runs the live watch view for one app.
func WatchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "watch") {
		return nil
	}

	appID, err := AppID(cmd)
	if err != nil {
		return err
	}

	svc, _, err := NewService(cmd)
	if err != nil {
		return err
	}

	refresh, err := time.ParseDuration(cmd.String("refresh"))
	if err != nil {
		return err
	}

	model := tui.New(svc, appID, refresh)
	_, err = tea.NewProgram(model, tea.WithContext(ctx)).Run()
	return err
}

// WatchCommandBuilder constructs the cli.Command for "watch".
func WatchCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "live view of an app's insight groups",
		UsageText: `insightctl watch [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "refresh",
				Aliases: []string{"r"},
				Usage:   "how often to recheck cache freshness",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("watch.refresh", altsrc.StringSourcer(meta.Config.Source)),
					yaml.YAML("refresh", altsrc.StringSourcer(meta.Config.Source)),
				),
				Value: "30s",
				Validator: func(value string) error {
					_, err := time.ParseDuration(value)
					return err
				},
			},
			NewHostFlag("watch", meta.Config.Source),
			NewTokenFlag("watch", meta.Config.Source),
			NewAppFlag("watch", meta.Config.Source),
			tldrFlag,
		},
		Action: WatchCommandAction,
	}
}
