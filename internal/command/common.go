// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"reflect"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/attrs"
	"github.com/insightlab/insightctl/internal/config"
	"github.com/insightlab/insightctl/internal/errsink"
	"github.com/insightlab/insightctl/internal/insights"
	"github.com/insightlab/insightctl/internal/meta"
	"github.com/insightlab/insightctl/internal/output"
)

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr insightctl <subcmd>` and returns true so the caller can exit
// early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "insightctl", subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// DumpSchemaIfRequested prints the attribute schema for the provided type
// when --schema is set, and returns true if it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, t reflect.Type) bool {
	if cmd.Bool("schema") {
		output.DumpSchema("", t)
		return true
	}
	return false
}

// BuildAttrs constructs an AttrList with defaults and optional extras from
// --attrs, then applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (al attrs.AttrList) {
	//nolint:errcheck
	{
		for _, d := range defaults {
			al.Set(d)
		}
		if extras := cmd.String("attrs"); extras != "" {
			al.Set(extras)
		}
		al.SetGlobalTransformSpec()
	}
	return
}

// EmitJSONSlice marshals a slice as JSON and passes it to the common output
// routine.
func EmitJSONSlice(results any, al attrs.AttrList, cmd *cli.Command) error {
	var raw bytes.Buffer
	if err := json.NewEncoder(&raw).Encode(results); err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	output.SliceDiceSpit(raw, al, cmd, "", os.Stdout)
	return nil
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// NewGateway builds an api.Client from the host/token flags.
func NewGateway(cmd *cli.Command) (*api.Client, error) {
	token := cmd.String("token")
	if token == "" {
		return nil, errors.New("no token configured. Run `insightctl login` or set INSIGHTCTL_TOKEN")
	}
	return api.NewClient(cmd.String("host"), token)
}

// NewService builds the insights coordinator on top of the gateway. The
// staleness window and error retention come from the config file
// (cache.maxage, cache.errors).
func NewService(cmd *cli.Command) (*insights.Service, *errsink.Sink, error) {
	gw, err := NewGateway(cmd)
	if err != nil {
		return nil, nil, err
	}

	maxAge, _ := config.GetDuration("cache.maxage", insights.DefaultMaxAge)
	maxErrs, _ := config.GetInt("cache.errors", 20)

	sink := errsink.New(maxErrs)
	svc := insights.New(gw, sink, insights.WithMaxAge(maxAge))
	return svc, sink, nil
}

// AppID resolves the --app flag into a UUID.
func AppID(cmd *cli.Command) (uuid.UUID, error) {
	raw := cmd.String("app")
	if raw == "" {
		return uuid.UUID{}, errors.New("no app specified. Use --app or set INSIGHTCTL_APP")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid app ID %q: %w", raw, err)
	}
	return id, nil
}

// LoadGroups performs one blocking fetch of the app's groups through the
// coordinator. One-shot commands start with a cold cache, so waiting on the
// fetch is the only way to have data to emit.
func LoadGroups(ctx context.Context, svc *insights.Service, appID uuid.UUID) ([]api.InsightGroup, error) {
	type result struct {
		groups []api.InsightGroup
		err    error
	}

	ch := make(chan result, 1)
	svc.FetchInsightGroups(ctx, appID, func(groups []api.InsightGroup, err error) {
		ch <- result{groups: groups, err: err}
	})

	select {
	case r := <-ch:
		return r.groups, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GroupErrorContext builds the error context shared by the group-scoped
// commands.
func GroupErrorContext(cmd *cli.Command, appID uuid.UUID, operation string) api.ErrorContext {
	return api.ErrorContext{
		Host:      cmd.String("host"),
		AppID:     appID.String(),
		Operation: operation,
		Resource:  "insight group",
	}
}
