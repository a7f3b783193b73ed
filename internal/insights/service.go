// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

// Package insights holds the client-side cache and fetch coordinator that
// sits between consumers (commands, the watch view) and the backend gateway.
//
// Reads never block and never fail: they return the current best known value
// immediately, scheduling a background fetch when the value is absent or
// older than the staleness window (stale-while-revalidate). Writes go to the
// backend and are always followed by exactly one refetch of the affected
// app's groups, so the cache reconverges on server truth whether the write
// succeeded or not.
package insights

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/errsink"
)

// DefaultMaxAge is the staleness window used when none is configured.
const DefaultMaxAge = 5 * time.Minute

// Gateway is the slice of the backend API the coordinator needs.
// *api.Client satisfies it.
type Gateway interface {
	ListInsightGroups(ctx context.Context, appID uuid.UUID) ([]api.InsightGroup, error)
	CreateInsightGroup(ctx context.Context, appID uuid.UUID, title string) (*api.InsightGroup, error)
	UpdateInsightGroup(ctx context.Context, appID uuid.UUID, group api.InsightGroup) (*api.InsightGroup, error)
	DeleteInsightGroup(ctx context.Context, appID, groupID uuid.UUID) (*api.InsightGroup, error)
	CreateInsight(ctx context.Context, appID, groupID uuid.UUID, def api.InsightDefinition) (*api.CalculationResult, error)
	UpdateInsight(ctx context.Context, appID, groupID, insightID uuid.UUID, def api.InsightDefinition) (*api.CalculationResult, error)
	DeleteInsight(ctx context.Context, appID, groupID, insightID uuid.UUID) (string, error)
}

// Service is the coordinator. One long-lived instance per session; all
// methods are safe for concurrent use.
//
// All cache state is guarded by one mutex. Network I/O runs on goroutines
// that re-acquire the mutex to apply results, so every mutation is
// serialized: the in-flight check-then-insert is atomic and the at-most-one-
// fetch-per-app invariant holds under concurrency.
type Service struct {
	gw     Gateway
	sink   *errsink.Sink
	maxAge time.Duration
	now    func() time.Time

	mu       sync.Mutex
	groups   map[uuid.UUID][]api.InsightGroup
	lastLoad map[uuid.UUID]time.Time
	loading  map[uuid.UUID]struct{}
	focus    *uuid.UUID
	selected *uuid.UUID

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// Option customizes a Service.
type Option func(*Service)

// WithMaxAge sets the staleness window. Cached entries older than this are
// served stale while a background refetch runs.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New builds a Service on top of the gateway. sink receives every fetch and
// write failure; read paths never surface errors themselves.
func New(gw Gateway, sink *errsink.Sink, opts ...Option) *Service {
	s := &Service{
		gw:       gw,
		sink:     sink,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
		groups:   make(map[uuid.UUID][]api.InsightGroup),
		lastLoad: make(map[uuid.UUID]time.Time),
		loading:  make(map[uuid.UUID]struct{}),
		subs:     make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsightGroups returns the cached groups for appID, or nil when nothing is
// cached yet. Absent or stale entries schedule a background fetch; the stale
// value is still returned immediately. Callers must treat the returned slice
// as read-only; a fetch replaces it wholesale, never in place.
func (s *Service) InsightGroups(ctx context.Context, appID uuid.UUID) []api.InsightGroup {
	s.mu.Lock()
	cached, ok := s.groups[appID]
	stale := ok && s.now().Sub(s.lastLoad[appID]) > s.maxAge

	// This app is now the one in focus; the selection pointer tracks the
	// value this call returns, not a future refreshed one.
	app := appID
	s.focus = &app
	s.reconcileSelectionLocked(cached)
	s.mu.Unlock()

	if !ok || stale {
		s.fetch(ctx, appID, nil)
	}

	return cached
}

// InsightGroup returns one group from the cached set. A cached set that does
// not contain groupID is treated as a miss for that group: a fetch is
// scheduled even if the set is otherwise fresh, covering groups created
// elsewhere that this client does not know about yet.
func (s *Service) InsightGroup(ctx context.Context, groupID, appID uuid.UUID) *api.InsightGroup {
	groups := s.InsightGroups(ctx, appID)
	for i := range groups {
		if groups[i].ID == groupID {
			return &groups[i]
		}
	}

	if groups != nil {
		log.Debugf("group %s not in cached set for app %s, refetching", groupID, appID)
		s.fetch(ctx, appID, nil)
	}
	return nil
}

// Insight is a pure lookup within the group resolved by InsightGroup. The
// fetch granularity is "all groups for an app"; a missing insight does not
// trigger anything on its own.
func (s *Service) Insight(ctx context.Context, insightID, groupID, appID uuid.UUID) *api.Insight {
	group := s.InsightGroup(ctx, groupID, appID)
	if group == nil {
		return nil
	}
	for i := range group.Insights {
		if group.Insights[i].ID == insightID {
			return &group.Insights[i]
		}
	}
	return nil
}

// FetchInsightGroups schedules a fetch of appID's groups. If a fetch for the
// app is already in flight, it returns without issuing a duplicate request
// (and without invoking done). done, if given, runs after the fetch settles,
// with the sorted result or the error.
func (s *Service) FetchInsightGroups(ctx context.Context, appID uuid.UUID, done func([]api.InsightGroup, error)) {
	s.fetch(ctx, appID, done)
}

// fetch is the single fetch path. Returns false when suppressed by the
// in-flight guard.
func (s *Service) fetch(ctx context.Context, appID uuid.UUID, done func([]api.InsightGroup, error)) bool {
	s.mu.Lock()
	if _, inFlight := s.loading[appID]; inFlight {
		s.mu.Unlock()
		log.Debugf("fetch for app %s already in flight", appID)
		return false
	}
	s.loading[appID] = struct{}{}
	s.mu.Unlock()
	s.notify()

	go func() {
		groups, err := s.gw.ListInsightGroups(ctx, appID)

		s.mu.Lock()
		if err == nil {
			sortGroups(groups)
			// Full replacement: groups missing from the response are dropped.
			s.groups[appID] = groups
			s.lastLoad[appID] = s.now()
			if s.focus != nil && *s.focus == appID {
				s.reconcileSelectionLocked(groups)
			}
		}
		// A failed fetch leaves the entry and its timestamp untouched, but the
		// in-flight mark always comes off so the app never sticks as loading.
		delete(s.loading, appID)
		s.mu.Unlock()

		if err != nil {
			s.sink.Report("fetch insight groups", err)
		}
		s.notify()

		if done != nil {
			if err != nil {
				done(nil, err)
			} else {
				done(groups, nil)
			}
		}
	}()
	return true
}

// CreateInsightGroup creates a group titled title, then refetches the app's
// groups. done receives the create's own result once the refetch settles.
func (s *Service) CreateInsightGroup(ctx context.Context, appID uuid.UUID, title string, done func(*api.InsightGroup, error)) {
	go func() {
		group, err := s.gw.CreateInsightGroup(ctx, appID, title)
		if err != nil {
			s.sink.Report("create insight group", err)
		}
		s.afterWrite(ctx, appID, false, func() {
			if done != nil {
				done(group, err)
			}
		})
	}()
}

// UpdateInsightGroup updates a group. The cache entry is invalidated before
// the refetch so the reload cannot be short-circuited by a freshness check.
func (s *Service) UpdateInsightGroup(ctx context.Context, appID uuid.UUID, group api.InsightGroup, done func(*api.InsightGroup, error)) {
	go func() {
		updated, err := s.gw.UpdateInsightGroup(ctx, appID, group)
		if err != nil {
			s.sink.Report("update insight group", err)
		}
		s.afterWrite(ctx, appID, true, func() {
			if done != nil {
				done(updated, err)
			}
		})
	}()
}

// DeleteInsightGroup deletes a group, then refetches.
func (s *Service) DeleteInsightGroup(ctx context.Context, appID, groupID uuid.UUID, done func(*api.InsightGroup, error)) {
	go func() {
		deleted, err := s.gw.DeleteInsightGroup(ctx, appID, groupID)
		if err != nil {
			s.sink.Report("delete insight group", err)
		}
		s.afterWrite(ctx, appID, false, func() {
			if done != nil {
				done(deleted, err)
			}
		})
	}()
}

// CreateInsight creates an insight in a group, then refetches the app's
// groups. done receives the backend's calculation result.
func (s *Service) CreateInsight(ctx context.Context, appID, groupID uuid.UUID, def api.InsightDefinition, done func(*api.CalculationResult, error)) {
	go func() {
		result, err := s.gw.CreateInsight(ctx, appID, groupID, def)
		if err != nil {
			s.sink.Report("create insight", err)
		}
		s.afterWrite(ctx, appID, false, func() {
			if done != nil {
				done(result, err)
			}
		})
	}()
}

// UpdateInsight updates an insight's definition. Like group updates, the
// cache entry is invalidated before the refetch.
func (s *Service) UpdateInsight(ctx context.Context, appID, groupID, insightID uuid.UUID, def api.InsightDefinition, done func(*api.CalculationResult, error)) {
	go func() {
		result, err := s.gw.UpdateInsight(ctx, appID, groupID, insightID, def)
		if err != nil {
			s.sink.Report("update insight", err)
		}
		s.afterWrite(ctx, appID, true, func() {
			if done != nil {
				done(result, err)
			}
		})
	}()
}

// DeleteInsight deletes an insight, then refetches.
func (s *Service) DeleteInsight(ctx context.Context, appID, groupID, insightID uuid.UUID, done func(string, error)) {
	go func() {
		result, err := s.gw.DeleteInsight(ctx, appID, groupID, insightID)
		if err != nil {
			s.sink.Report("delete insight", err)
		}
		s.afterWrite(ctx, appID, false, func() {
			if done != nil {
				done(result, err)
			}
		})
	}()
}

// afterWrite runs the single post-write refetch and then finish. When the
// refetch is suppressed because another fetch is already in flight, finish
// still runs; that flight will reconcile the cache.
func (s *Service) afterWrite(ctx context.Context, appID uuid.UUID, invalidate bool, finish func()) {
	if invalidate {
		s.invalidate(appID)
	}
	if !s.fetch(ctx, appID, func([]api.InsightGroup, error) { finish() }) {
		finish()
	}
}

// invalidate clears the cache entry and its timestamp together.
func (s *Service) invalidate(appID uuid.UUID) {
	s.mu.Lock()
	delete(s.groups, appID)
	delete(s.lastLoad, appID)
	s.mu.Unlock()
	s.notify()
}

// IsLoading reports whether a fetch for appID is outstanding.
func (s *Service) IsLoading(appID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loading[appID]
	return ok
}

// LastLoad returns the time of the last successful load for appID.
func (s *Service) LastLoad(appID uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastLoad[appID]
	return t, ok
}

// SelectedGroupID returns the current selection, if any.
func (s *Service) SelectedGroupID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return uuid.UUID{}, false
	}
	return *s.selected, true
}

// Select moves the selection to groupID. The move is refused when the group
// is not in the cached set for appID, keeping the selection invariant.
func (s *Service) Select(appID, groupID uuid.UUID) bool {
	s.mu.Lock()
	for _, g := range s.groups[appID] {
		if g.ID == groupID {
			id := groupID
			s.selected = &id
			s.mu.Unlock()
			s.notify()
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// reconcileSelectionLocked enforces the selection invariant against the
// given set: keep the selection if present, otherwise point at the first
// group, or clear it when the set is empty. Caller holds s.mu.
func (s *Service) reconcileSelectionLocked(groups []api.InsightGroup) {
	if len(groups) == 0 {
		s.selected = nil
		return
	}

	if s.selected != nil {
		for _, g := range groups {
			if g.ID == *s.selected {
				return
			}
		}
	}

	id := groups[0].ID
	s.selected = &id
}

// Subscribe registers a change listener. The returned channel receives a
// signal (coalesced, non-blocking) after every observable state change.
// Call the returned func to unsubscribe.
func (s *Service) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++

	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Service) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// sortGroups orders groups ascending by order key, missing key first as 0.
// The sort is stable so equal keys keep the server's order.
func sortGroups(groups []api.InsightGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].OrderValue() < groups[j].OrderValue()
	})
}
