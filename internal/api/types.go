// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

// Package api is the typed gateway to the insights backend. It knows about
// HTTP verbs, resource paths and JSON decoding, and nothing about caching;
// that is the insights package's job.
package api

import (
	"time"

	"github.com/google/uuid"
)

// App is a tracked application. Apps own insight groups.
type App struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// InsightGroup is a named, ordered collection of insights belonging to one
// app. Order is optional on the server; a missing order sorts as 0.
type InsightGroup struct {
	ID       uuid.UUID `json:"id"`
	AppID    uuid.UUID `json:"appID"`
	Title    string    `json:"title"`
	Order    *float64  `json:"order,omitempty"`
	Insights []Insight `json:"insights"`
}

// OrderValue returns the group's ordering key, treating a missing order as 0.
func (g InsightGroup) OrderValue() float64 {
	if g.Order == nil {
		return 0
	}
	return *g.Order
}

// Insight is a single analytics query/visualization definition, owned by
// exactly one group.
type Insight struct {
	ID           uuid.UUID `json:"id"`
	GroupID      uuid.UUID `json:"groupID"`
	Order        *float64  `json:"order,omitempty"`
	Title        string    `json:"title"`
	SignalType   string    `json:"signalType,omitempty"`
	BreakdownKey string    `json:"breakdownKey,omitempty"`
	GroupBy      string    `json:"groupBy,omitempty"`
	DisplayMode  string    `json:"displayMode,omitempty"`
	IsExpanded   bool      `json:"isExpanded"`
}

// InsightDefinition is the request body for creating or updating an insight.
type InsightDefinition struct {
	GroupID      uuid.UUID `json:"groupID"`
	Order        *float64  `json:"order,omitempty"`
	Title        string    `json:"title"`
	SignalType   string    `json:"signalType,omitempty"`
	BreakdownKey string    `json:"breakdownKey,omitempty"`
	GroupBy      string    `json:"groupBy,omitempty"`
	DisplayMode  string    `json:"displayMode,omitempty"`
	IsExpanded   bool      `json:"isExpanded"`
}

// DataRow is one point of a calculated insight.
type DataRow struct {
	XAxisValue string   `json:"xAxisValue"`
	YAxisValue *float64 `json:"yAxisValue"`
}

// CalculationResult is what the backend returns for insight create/update:
// the stored insight plus its freshly calculated data.
type CalculationResult struct {
	ID           uuid.UUID `json:"id"`
	Insight      Insight   `json:"insight"`
	Data         []DataRow `json:"data"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// groupCreateBody is the request body for POST apps/{id}/insightgroups.
type groupCreateBody struct {
	Title string `json:"title"`
}
