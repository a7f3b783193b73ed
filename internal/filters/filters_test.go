// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/insightlab/insightctl/internal/attrs"
)

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		delimiter string
		want      []Filter
		wantCount int
	}{
		{
			name:      "empty spec",
			spec:      "",
			wantCount: 0,
		},
		{
			name:      "single exact match filter",
			spec:      "title=Retention",
			wantCount: 1,
			want: []Filter{
				{Key: "title", Operand: "=", Target: "Retention", Negate: false},
			},
		},
		{
			name:      "prefix match filter",
			spec:      "signalType^signal",
			wantCount: 1,
			want: []Filter{
				{Key: "signalType", Operand: "^", Target: "signal", Negate: false},
			},
		},
		{
			name:      "negated exact match",
			spec:      "title!=Retention",
			wantCount: 1,
			want: []Filter{
				{Key: "title", Operand: "=", Target: "Retention", Negate: true},
			},
		},
		{
			name:      "multiple filters",
			spec:      "title=KPIs,order>1",
			wantCount: 2,
			want: []Filter{
				{Key: "title", Operand: "=", Target: "KPIs", Negate: false},
				{Key: "order", Operand: ">", Target: "1", Negate: false},
			},
		},
		{
			name:      "contains operand",
			spec:      "title@Daily",
			wantCount: 1,
			want: []Filter{
				{Key: "title", Operand: "@", Target: "Daily", Negate: false},
			},
		},
		{
			name:      "regex operand",
			spec:      "title/^Weekly.*",
			wantCount: 1,
			want: []Filter{
				{Key: "title", Operand: "/", Target: "^Weekly.*", Negate: false},
			},
		},
		{
			name:      "invalid filter skipped",
			spec:      "title=KPIs,bogus-filter,order>1",
			wantCount: 2,
			want: []Filter{
				{Key: "title", Operand: "=", Target: "KPIs", Negate: false},
				{Key: "order", Operand: ">", Target: "1", Negate: false},
			},
		},
		{
			name:      "custom delimiter",
			spec:      "title=a,b;order>1",
			delimiter: ";",
			wantCount: 2,
			want: []Filter{
				{Key: "title", Operand: "=", Target: "a,b", Negate: false},
				{Key: "order", Operand: ">", Target: "1", Negate: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.delimiter != "" {
				t.Setenv("INSIGHTCTL_FILTER_DELIM", tt.delimiter)
			}

			got := BuildFilters(tt.spec)
			require.Len(t, got, tt.wantCount)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// groupDataset is a parsed slice of insight groups as returned by the list
// endpoint, used by the FilterDataset tests below.
var groupDataset = gjson.Parse(`[
	{"id": "g-1", "title": "KPIs", "order": 1, "insights": [
		{"id": "i-1", "title": "Daily Users", "signalType": "newSessionBegan"}
	]},
	{"id": "g-2", "title": "Retention", "order": 2, "insights": []},
	{"id": "g-3", "title": "Weekly Rollup", "order": 3, "insights": []}
]`)

func groupAttrs(t *testing.T) attrs.AttrList {
	t.Helper()

	var a attrs.AttrList
	require.NoError(t, a.Set("id,title,order"))
	return a
}

func TestFilterDatasetExactMatch(t *testing.T) {
	rows := FilterDataset(groupDataset, groupAttrs(t), "title=Retention")

	require.Len(t, rows, 1)
	assert.Equal(t, "g-2", rows[0]["id"])
}

func TestFilterDatasetNumeric(t *testing.T) {
	rows := FilterDataset(groupDataset, groupAttrs(t), "order>1")

	require.Len(t, rows, 2)
	assert.Equal(t, "Retention", rows[0]["title"])
	assert.Equal(t, "Weekly Rollup", rows[1]["title"])
}

func TestFilterDatasetNegatedPrefix(t *testing.T) {
	rows := FilterDataset(groupDataset, groupAttrs(t), "title!^Weekly")

	require.Len(t, rows, 2)
}

func TestFilterDatasetNoFiltersKeepsAll(t *testing.T) {
	rows := FilterDataset(groupDataset, groupAttrs(t), "")

	require.Len(t, rows, 3)
	// Only the requested attrs survive into the row.
	assert.NotContains(t, rows[0], "insights")
}

func TestFilterDatasetUnknownKeySkipsFilter(t *testing.T) {
	// An unknown filter key is reported but never rejects rows.
	rows := FilterDataset(groupDataset, groupAttrs(t), "nope=x")
	require.Len(t, rows, 3)
}

func TestFilterDatasetNilValueRejectsRow(t *testing.T) {
	var a attrs.AttrList
	require.NoError(t, a.Set("id,insights.0.signalType:signal"))

	rows := FilterDataset(groupDataset, a, "signal=newSessionBegan")
	require.Len(t, rows, 1)
	assert.Equal(t, "g-1", rows[0]["id"])
}

func TestCheckStringOperands(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		filter Filter
		want   bool
	}{
		{name: "equal", value: "KPIs", filter: Filter{Operand: "=", Target: "KPIs"}, want: true},
		{name: "equal negated", value: "KPIs", filter: Filter{Operand: "=", Target: "KPIs", Negate: true}, want: false},
		{name: "fold", value: "kpis", filter: Filter{Operand: "~", Target: "KPIs"}, want: true},
		{name: "prefix", value: "Weekly Rollup", filter: Filter{Operand: "^", Target: "Weekly"}, want: true},
		{name: "contains", value: "Daily Users", filter: Filter{Operand: "@", Target: "Users"}, want: true},
		{name: "regex", value: "Daily Users", filter: Filter{Operand: "/", Target: `^Daily\s`}, want: true},
		{name: "bad regex", value: "x", filter: Filter{Operand: "/", Target: "("}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkStringOperand(tt.value, tt.filter))
		})
	}
}

func TestCheckContainsOperand(t *testing.T) {
	assert.True(t, checkContainsOperand([]any{"a", "b"}, Filter{Operand: "@", Target: "b"}))
	assert.False(t, checkContainsOperand([]any{"a"}, Filter{Operand: "@", Target: "b"}))
	assert.True(t, checkContainsOperand(map[string]any{"b": 1}, Filter{Operand: "@", Target: "b"}))
	assert.True(t, checkContainsOperand([]any{"a"}, Filter{Operand: "@", Target: "b", Negate: true}))
}
