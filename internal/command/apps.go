// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"reflect"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/meta"
)

// AppsCommandAction lists the apps visible to the token.
func AppsCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "apps") {
		return nil
	}

	if DumpSchemaIfRequested(cmd, reflect.TypeOf(api.App{})) {
		return nil
	}

	attrs := BuildAttrs(cmd, ".id", "name")
	log.Debugf("attrs: %v", attrs)

	client, err := NewGateway(cmd)
	if err != nil {
		return err
	}

	apps, err := client.Apps(ctx)
	if err != nil {
		return api.Friendly(err, api.ErrorContext{
			Host:      cmd.String("host"),
			Operation: "list apps",
			Resource:  "app",
		})
	}

	return EmitJSONSlice(apps, attrs, cmd)
}

// AppsCommandBuilder constructs the cli.Command for "apps".
func AppsCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "apps",
		Usage:     "list apps",
		UsageText: `insightctl apps [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewHostFlag("apps", meta.Config.Source),
			NewTokenFlag("apps", meta.Config.Source),
			tldrFlag,
			schemaFlag,
		}, NewGlobalFlags("apps")...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, c); err != nil {
				return err
			}
			return AppsCommandAction(ctx, c)
		},
	}
}
