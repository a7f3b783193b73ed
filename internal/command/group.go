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

// GroupCommandBuilder constructs the "group" command with its create, update
// and delete subcommands. Every write is followed by a refetch through the
// coordinator before the command returns, so what gets printed is the
// post-write server truth.
func GroupCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "group",
		Usage:     "manage insight groups",
		UsageText: `insightctl group <create|update|delete> [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			groupCreateCommand(meta),
			groupUpdateCommand(meta),
			groupDeleteCommand(meta),
		},
	}
}

func groupCreateCommand(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create an insight group",
		UsageText: `insightctl group create --title <title> [options]`,
		Metadata:  map[string]any{"meta": m},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Usage:    "title for the new group",
				Required: true,
			},
			NewHostFlag("group", m.Config.Source),
			NewTokenFlag("group", m.Config.Source),
			NewAppFlag("group", m.Config.Source),
			tldrFlag,
		}, NewGlobalFlags("group")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if ShortCircuitTLDR(ctx, cmd, "group") {
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

			var created *api.InsightGroup
			done := make(chan error, 1)
			svc.CreateInsightGroup(ctx, appID, cmd.String("title"), func(g *api.InsightGroup, err error) {
				created = g
				done <- err
			})

			if err := waitWrite(ctx, done); err != nil {
				return api.Friendly(err, GroupErrorContext(cmd, appID, "create insight group"))
			}
			log.Debugf("created group %s", created.ID)

			attrs := BuildAttrs(cmd, ".id", "title")
			return EmitJSONSlice([]api.InsightGroup{*created}, attrs, cmd)
		},
	}
}

func groupUpdateCommand(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "retitle or reorder an insight group",
		UsageText: `insightctl group update --group <id> [--title <title>] [--order <n>] [options]`,
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
				Name:  "title",
				Usage: "new title",
			},
			&cli.FloatFlag{
				Name:  "order",
				Usage: "new order key",
				Value: -1,
			},
			NewHostFlag("group", m.Config.Source),
			NewTokenFlag("group", m.Config.Source),
			NewAppFlag("group", m.Config.Source),
			tldrFlag,
		}, NewGlobalFlags("group")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if ShortCircuitTLDR(ctx, cmd, "group") {
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

			// Load first so the update starts from the server's current view of
			// the group, not a blank one.
			groups, err := LoadGroups(ctx, svc, appID)
			if err != nil {
				return api.Friendly(err, GroupErrorContext(cmd, appID, "load insight groups"))
			}

			group := findGroup(groups, groupID)
			if group == nil {
				return fmt.Errorf("group %s not found in app %s", groupID, appID)
			}

			if title := cmd.String("title"); title != "" {
				group.Title = title
			}
			if order := cmd.Float("order"); order >= 0 {
				group.Order = &order
			}

			var updated *api.InsightGroup
			done := make(chan error, 1)
			svc.UpdateInsightGroup(ctx, appID, *group, func(g *api.InsightGroup, err error) {
				updated = g
				done <- err
			})

			if err := waitWrite(ctx, done); err != nil {
				return api.Friendly(err, GroupErrorContext(cmd, appID, "update insight group"))
			}

			attrs := BuildAttrs(cmd, ".id", "title", "order")
			return EmitJSONSlice([]api.InsightGroup{*updated}, attrs, cmd)
		},
	}
}

func groupDeleteCommand(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete an insight group and its insights",
		UsageText: `insightctl group delete --group <id> [options]`,
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
			NewHostFlag("group", m.Config.Source),
			NewTokenFlag("group", m.Config.Source),
			NewAppFlag("group", m.Config.Source),
			tldrFlag,
		}, NewGlobalFlags("group")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if ShortCircuitTLDR(ctx, cmd, "group") {
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

			var deleted *api.InsightGroup
			done := make(chan error, 1)
			svc.DeleteInsightGroup(ctx, appID, groupID, func(g *api.InsightGroup, err error) {
				deleted = g
				done <- err
			})

			if err := waitWrite(ctx, done); err != nil {
				return api.Friendly(err, GroupErrorContext(cmd, appID, "delete insight group"))
			}

			if deleted != nil {
				fmt.Printf("Deleted group %q (%s)\n", deleted.Title, deleted.ID)
			} else {
				fmt.Printf("Deleted group %s\n", groupID)
			}
			return nil
		},
	}
}

// waitWrite blocks until the write's done callback fires or the context is
// canceled.
func waitWrite(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// findGroup returns a copy of the group with the given ID, or nil.
func findGroup(groups []api.InsightGroup, groupID uuid.UUID) *api.InsightGroup {
	for i := range groups {
		if groups[i].ID == groupID {
			g := groups[i]
			return &g
		}
	}
	return nil
}
