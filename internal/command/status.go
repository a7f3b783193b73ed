// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/meta"
)

// StatusCommandAction loads an app's groups once and reports on the result:
// group and insight counts, load age and any errors the coordinator sank
// along the way. It doubles as a connectivity check.
func StatusCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "status") {
		return nil
	}

	appID, err := AppID(cmd)
	if err != nil {
		return err
	}

	svc, sink, err := NewService(cmd)
	if err != nil {
		return err
	}

	groups, loadErr := LoadGroups(ctx, svc, appID)

	insightCount := 0
	for _, g := range groups {
		insightCount += len(g.Insights)
	}

	fmt.Printf("host:      %s\n", cmd.String("host"))
	fmt.Printf("app:       %s\n", appID)
	fmt.Printf("groups:    %d\n", len(groups))
	fmt.Printf("insights:  %d\n", insightCount)

	if loaded, ok := svc.LastLoad(appID); ok {
		fmt.Printf("loaded:    %s\n", humanize.Time(loaded))
	} else {
		fmt.Printf("loaded:    never\n")
	}

	if selected, ok := svc.SelectedGroupID(); ok {
		fmt.Printf("selected:  %s\n", selected)
	}

	for _, entry := range sink.Recent() {
		fmt.Printf("error:     %s (%s, %s)\n",
			entry.Err, entry.Operation, humanize.Time(entry.Time))
	}

	if loadErr != nil {
		return api.Friendly(loadErr, GroupErrorContext(cmd, appID, "load insight groups"))
	}
	return nil
}

// StatusCommandBuilder constructs the cli.Command for "status".
func StatusCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "check backend connectivity and cache state for an app",
		UsageText: `insightctl status [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: []cli.Flag{
			NewHostFlag("status", meta.Config.Source),
			NewTokenFlag("status", meta.Config.Source),
			NewAppFlag("status", meta.Config.Source),
			tldrFlag,
		},
		Action: StatusCommandAction,
	}
}
