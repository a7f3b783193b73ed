// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

// insightctl is the main package for the insightctl command line tool. It
// wires the CLI, delegates to internal packages, and serves as the entry
// point.
package main
