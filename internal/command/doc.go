// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

// Package command wires the CLI surface: one builder per subcommand, shared
// flag constructors and the glue between flags, config and the insights
// coordinator.
package command
