// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

// Package output renders result datasets to the terminal. The pipeline is
// filter, transform, sort and spit, driven by the --attrs, --filter, --sort
// and --output flags.
package output
