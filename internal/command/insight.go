// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/meta"
)

// InsightCommandBuilder constructs the "insight" command with its create,
// update and delete subcommands.
func InsightCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "insight",
		Usage:     "manage insights",
		UsageText: `insightctl insight <create|update|delete> [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			insightCreateCommand(meta),
			insightUpdateCommand(meta),
			insightDeleteCommand(meta),
		},
	}
}

// insightDefinitionFlags are the flags shared by create and update that map
// onto api.InsightDefinition.
func insightDefinitionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "title",
			Usage: "insight title",
		},
		&cli.StringFlag{
			Name:  "signal-type",
			Usage: "signal type the insight queries",
		},
		&cli.StringFlag{
			Name:  "breakdown-key",
			Usage: "payload key to break results down by",
		},
		&cli.StringFlag{
			Name:  "group-by",
			Usage: "time granularity to group results by (hour, day, week, month)",
		},
		&cli.StringFlag{
			Name:  "display-mode",
			Usage: "how to render the insight (raw, barChart, lineChart, pieChart)",
		},
		&cli.BoolFlag{
			Name:  "expanded",
			Usage: "render the insight at double width",
		},
		&cli.FloatFlag{
			Name:  "order",
			Usage: "order key within the group",
			Value: -1,
		},
	}
}

// definitionFromFlags builds the request body for insight writes, starting
// from base so that update only changes what the flags name.
func definitionFromFlags(cmd *cli.Command, base api.InsightDefinition) api.InsightDefinition {
	def := base

	if v := cmd.String("title"); v != "" {
		def.Title = v
	}
	if v := cmd.String("signal-type"); v != "" {
		def.SignalType = v
	}
	if v := cmd.String("breakdown-key"); v != "" {
		def.BreakdownKey = v
	}
	if v := cmd.String("group-by"); v != "" {
		def.GroupBy = v
	}
	if v := cmd.String("display-mode"); v != "" {
		def.DisplayMode = v
	}
	if cmd.IsSet("expanded") {
		def.IsExpanded = cmd.Bool("expanded")
	}
	if order := cmd.Float("order"); order >= 0 {
		def.Order = &order
	}

	return def
}

func insightCreateCommand(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create an insight in a group",
		UsageText: `insightctl insight create --group <id> --title <title> [options]`,
		Metadata:  map[string]any{"meta": m},
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{
				Name:     "group",
				Aliases:  []string{"g"},
				Usage:    "insight group ID to create in",
				Required: true,
				Validator: func(value string) error {
					return FlagValidators(value, UUIDValidator)
				},
			},
			NewHostFlag("insight", m.Config.Source),
			NewTokenFlag("insight", m.Config.Source),
			NewAppFlag("insight", m.Config.Source),
			tldrFlag,
		}, insightDefinitionFlags()...), NewGlobalFlags("insight")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if ShortCircuitTLDR(ctx, cmd, "insight") {
				return nil
			}

			appID, err := AppID(cmd)
			if err != nil {
				return err
			}
			groupID := uuid.MustParse(cmd.String("group"))

			svc, _, err := NewService(cmd)
			if err != nil {
				return err
			}

			def := definitionFromFlags(cmd, api.InsightDefinition{GroupID: groupID})

			var result *api.CalculationResult
			done := make(chan error, 1)
			svc.CreateInsight(ctx, appID, groupID, def, func(r *api.CalculationResult, err error) {
				result = r
				done <- err
			})

			if err := waitWrite(ctx, done); err != nil {
				return api.Friendly(err, insightErrorContext(cmd, appID, "create insight"))
			}
			log.Debugf("created insight %s", result.Insight.ID)

			attrs := BuildAttrs(cmd, "insight.id:id", "insight.title:title", "calculatedAt::h")
			return EmitJSONSlice([]api.CalculationResult{*result}, attrs, cmd)
		},
	}
}

func insightUpdateCommand(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "update an insight's definition",
		UsageText: `insightctl insight update --group <id> --insight <id> [options]`,
		Metadata:  map[string]any{"meta": m},
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{
				Name:     "group",
				Aliases:  []string{"g"},
				Usage:    "insight group ID",
				Required: true,
				Validator: func(value string) error {
					return FlagValidators(value, UUIDValidator)
				},
			},
			&cli.StringFlag{
				Name:     "insight",
				Aliases:  []string{"i"},
				Usage:    "insight ID",
				Required: true,
				Validator: func(value string) error {
					return FlagValidators(value, UUIDValidator)
				},
			},
			NewHostFlag("insight", m.Config.Source),
			NewTokenFlag("insight", m.Config.Source),
			NewAppFlag("insight", m.Config.Source),
			tldrFlag,
		}, insightDefinitionFlags()...), NewGlobalFlags("insight")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if ShortCircuitTLDR(ctx, cmd, "insight") {
				return nil
			}

			appID, err := AppID(cmd)
			if err != nil {
				return err
			}
			groupID := uuid.MustParse(cmd.String("group"))
			insightID := uuid.MustParse(cmd.String("insight"))

			svc, _, err := NewService(cmd)
			if err != nil {
				return err
			}

			// Start from the insight's current definition so unset flags keep
			// their server-side values.
			groups, err := LoadGroups(ctx, svc, appID)
			if err != nil {
				return api.Friendly(err, insightErrorContext(cmd, appID, "load insight groups"))
			}

			base := api.InsightDefinition{GroupID: groupID}
			if group := findGroup(groups, groupID); group != nil {
				for _, ins := range group.Insights {
					if ins.ID == insightID {
						base = api.InsightDefinition{
							GroupID:      groupID,
							Order:        ins.Order,
							Title:        ins.Title,
							SignalType:   ins.SignalType,
							BreakdownKey: ins.BreakdownKey,
							GroupBy:      ins.GroupBy,
							DisplayMode:  ins.DisplayMode,
							IsExpanded:   ins.IsExpanded,
						}
						break
					}
				}
			}

			def := definitionFromFlags(cmd, base)

			var result *api.CalculationResult
			done := make(chan error, 1)
			svc.UpdateInsight(ctx, appID, groupID, insightID, def, func(r *api.CalculationResult, err error) {
				result = r
				done <- err
			})

			if err := waitWrite(ctx, done); err != nil {
				return api.Friendly(err, insightErrorContext(cmd, appID, "update insight"))
			}

			attrs := BuildAttrs(cmd, "insight.id:id", "insight.title:title", "calculatedAt::h")
			return EmitJSONSlice([]api.CalculationResult{*result}, attrs, cmd)
		},
	}
}

func insightDeleteCommand(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete an insight",
		UsageText: `insightctl insight delete --group <id> --insight <id> [options]`,
		Metadata:  map[string]any{"meta": m},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "group",
				Aliases:  []string{"g"},
				Usage:    "insight group ID",
				Required: true,
				Validator: func(value string) error {
					return FlagValidators(value, UUIDValidator)
				},
			},
			&cli.StringFlag{
				Name:     "insight",
				Aliases:  []string{"i"},
				Usage:    "insight ID",
				Required: true,
				Validator: func(value string) error {
					return FlagValidators(value, UUIDValidator)
				},
			},
			NewHostFlag("insight", m.Config.Source),
			NewTokenFlag("insight", m.Config.Source),
			NewAppFlag("insight", m.Config.Source),
			tldrFlag,
		}, NewGlobalFlags("insight")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if ShortCircuitTLDR(ctx, cmd, "insight") {
				return nil
			}

			appID, err := AppID(cmd)
			if err != nil {
				return err
			}
			groupID := uuid.MustParse(cmd.String("group"))
			insightID := uuid.MustParse(cmd.String("insight"))

			svc, _, err := NewService(cmd)
			if err != nil {
				return err
			}

			var result string
			done := make(chan error, 1)
			svc.DeleteInsight(ctx, appID, groupID, insightID, func(r string, err error) {
				result = r
				done <- err
			})

			if err := waitWrite(ctx, done); err != nil {
				return api.Friendly(err, insightErrorContext(cmd, appID, "delete insight"))
			}

			if result == "" {
				result = fmt.Sprintf("Deleted insight %s", insightID)
			}
			fmt.Println(result)
			return nil
		},
	}
}

func insightErrorContext(cmd *cli.Command, appID uuid.UUID, operation string) api.ErrorContext {
	return api.ErrorContext{
		Host:      cmd.String("host"),
		AppID:     appID.String(),
		Operation: operation,
		Resource:  "insight",
	}
}
