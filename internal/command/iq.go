// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"reflect"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/meta"
)

// IqCommandAction is the action handler for the "iq" subcommand. It lists
// insights across all of an app's groups, or just one group when --group is
// given.
func IqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "iq") {
		return nil
	}

	if DumpSchemaIfRequested(cmd, reflect.TypeOf(api.Insight{})) {
		return nil
	}

	attrs := BuildAttrs(cmd, ".id", "title", "signalType", "displayMode")
	log.Debugf("attrs: %v", attrs)

	appID, err := AppID(cmd)
	if err != nil {
		return err
	}

	var groupID uuid.UUID
	if raw := cmd.String("group"); raw != "" {
		groupID, err = uuid.Parse(raw)
		if err != nil {
			return err
		}
	}

	svc, _, err := NewService(cmd)
	if err != nil {
		return err
	}

	groups, err := LoadGroups(ctx, svc, appID)
	if err != nil {
		ectx := GroupErrorContext(cmd, appID, "list insights")
		ectx.Resource = "insight"
		return api.Friendly(err, ectx)
	}

	//nolint:prealloc
	var results []api.Insight
	for _, group := range groups {
		if groupID != (uuid.UUID{}) && group.ID != groupID {
			continue
		}
		results = append(results, group.Insights...)
	}
	log.Debugf("loaded %d insights", len(results))

	return EmitJSONSlice(results, attrs, cmd)
}

// IqCommandBuilder constructs the cli.Command for "iq".
func IqCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "iq",
		Usage:     "insight query",
		UsageText: `insightctl iq [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "limit results to one insight group ID",
				Validator: func(value string) error {
					return FlagValidators(value, UUIDValidator)
				},
			},
			NewHostFlag("iq", meta.Config.Source),
			NewTokenFlag("iq", meta.Config.Source),
			NewAppFlag("iq", meta.Config.Source),
			tldrFlag,
			schemaFlag,
		}, NewGlobalFlags("iq")...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, c); err != nil {
				return err
			}
			return IqCommandAction(ctx, c)
		},
	}
}
