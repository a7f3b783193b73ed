// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package output

import (
	"sort"
	"strings"
)

// sortKey is a single parsed --sort field. A leading - reverses the order
// and a leading ! makes the string comparison case sensitive.
type sortKey struct {
	key           string
	descending    bool
	caseSensitive bool
}

// SortDataset sorts the result set in place per the provided spec. The spec
// is a comma delimited list of output keys, each optionally prefixed with -
// (descending) and/or ! (case sensitive). An empty spec leaves the dataset
// in fetch order.
func SortDataset(dataset []map[string]interface{}, spec string) {
	if spec == "" || len(dataset) < 2 {
		return
	}

	//nolint:prealloc
	var keys []sortKey
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		k := sortKey{}
		if strings.HasPrefix(field, "-") {
			k.descending = true
			field = field[1:]
		}
		if strings.HasPrefix(field, "!") {
			k.caseSensitive = true
			field = field[1:]
		}
		k.key = field
		keys = append(keys, k)
	}

	if len(keys) == 0 {
		return
	}

	// Stable so that rows equal on every sort key keep their fetch order.
	sort.SliceStable(dataset, func(i, j int) bool {
		for _, k := range keys {
			c := compareValues(dataset[i][k.key], dataset[j][k.key], k.caseSensitive)
			if c == 0 {
				continue
			}
			if k.descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders two cell values. Numbers compare numerically, nils
// sort first and everything else falls back to a string comparison.
func compareValues(a, b interface{}, caseSensitive bool) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as := InterfaceToString(a)
	bs := InterfaceToString(b)
	if !caseSensitive {
		as = strings.ToLower(as)
		bs = strings.ToLower(bs)
	}
	return strings.Compare(as, bs)
}
