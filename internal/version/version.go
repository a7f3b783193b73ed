// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package version

// Version is stamped at release time via -ldflags.
var Version = "0.4.0-dev"
