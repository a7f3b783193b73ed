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

// GqCommandAction is the action handler for the "gq" subcommand. It lists the
// insight groups of an app, supports --tldr/--schema short-circuits, and
// emits results per common flags.
func GqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	// Bail out early if we're just dumping tldr.
	if ShortCircuitTLDR(ctx, cmd, "gq") {
		return nil
	}

	// Bail out early if we're just dumping the schema.
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(api.InsightGroup{})) {
		return nil
	}

	attrs := BuildAttrs(cmd, ".id", "title", "order")
	log.Debugf("attrs: %v", attrs)

	appID, err := AppID(cmd)
	if err != nil {
		return err
	}

	svc, _, err := NewService(cmd)
	if err != nil {
		return err
	}

	groups, err := LoadGroups(ctx, svc, appID)
	if err != nil {
		return api.Friendly(err, GroupErrorContext(cmd, appID, "list insight groups"))
	}
	log.Debugf("loaded %d groups", len(groups))

	return EmitJSONSlice(groups, attrs, cmd)
}

// GqCommandBuilder constructs the cli.Command for "gq", wiring metadata,
// flags, and action/validator handlers.
func GqCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "gq",
		Usage:     "insight group query",
		UsageText: `insightctl gq [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewHostFlag("gq", meta.Config.Source),
			NewTokenFlag("gq", meta.Config.Source),
			NewAppFlag("gq", meta.Config.Source),
			tldrFlag,
			schemaFlag,
		}, NewGlobalFlags("gq")...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, c); err != nil {
				return err
			}
			return GqCommandAction(ctx, c)
		},
	}
}
