// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package insights

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/errsink"
)

// fakeGateway is a scripted Gateway. Set groups/listErr to control list
// responses; set gate to hold a list call open until the channel closes.
type fakeGateway struct {
	mu        sync.Mutex
	groups    []api.InsightGroup
	listErr   error
	listCalls int
	gate      chan struct{}

	writeErr    error
	writeCalls  int
	wroteGroup  *api.InsightGroup
	wroteResult *api.CalculationResult
}

func (f *fakeGateway) ListInsightGroups(_ context.Context, _ uuid.UUID) ([]api.InsightGroup, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.gate
	groups := append([]api.InsightGroup(nil), f.groups...)
	err := f.listErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (f *fakeGateway) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeGateway) setGroups(groups []api.InsightGroup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = groups
	f.listErr = nil
}

func (f *fakeGateway) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeGateway) write() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	return f.writeCalls, f.writeErr
}

func (f *fakeGateway) CreateInsightGroup(_ context.Context, _ uuid.UUID, _ string) (*api.InsightGroup, error) {
	if _, err := f.write(); err != nil {
		return nil, err
	}
	return f.wroteGroup, nil
}

func (f *fakeGateway) UpdateInsightGroup(_ context.Context, _ uuid.UUID, _ api.InsightGroup) (*api.InsightGroup, error) {
	if _, err := f.write(); err != nil {
		return nil, err
	}
	return f.wroteGroup, nil
}

func (f *fakeGateway) DeleteInsightGroup(_ context.Context, _, _ uuid.UUID) (*api.InsightGroup, error) {
	if _, err := f.write(); err != nil {
		return nil, err
	}
	return f.wroteGroup, nil
}

func (f *fakeGateway) CreateInsight(_ context.Context, _, _ uuid.UUID, _ api.InsightDefinition) (*api.CalculationResult, error) {
	if _, err := f.write(); err != nil {
		return nil, err
	}
	return f.wroteResult, nil
}

func (f *fakeGateway) UpdateInsight(_ context.Context, _, _, _ uuid.UUID, _ api.InsightDefinition) (*api.CalculationResult, error) {
	if _, err := f.write(); err != nil {
		return nil, err
	}
	return f.wroteResult, nil
}

func (f *fakeGateway) DeleteInsight(_ context.Context, _, _, _ uuid.UUID) (string, error) {
	if _, err := f.write(); err != nil {
		return "", err
	}
	return "deleted", nil
}

// clock is a settable time source for WithClock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func orderOf(v float64) *float64 {
	return &v
}

func groupWithOrder(order *float64) api.InsightGroup {
	return api.InsightGroup{ID: uuid.New(), Title: "g", Order: order}
}

// fetchWait runs a fetch and blocks until its completion callback fires.
func fetchWait(t *testing.T, svc *Service, appID uuid.UUID) ([]api.InsightGroup, error) {
	t.Helper()

	done := make(chan struct{})
	var got []api.InsightGroup
	var gotErr error
	svc.FetchInsightGroups(context.Background(), appID, func(g []api.InsightGroup, err error) {
		got = g
		gotErr = err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not settle")
	}
	return got, gotErr
}

func TestReadMissSchedulesSingleFetch(t *testing.T) {
	gw := &fakeGateway{gate: make(chan struct{})}
	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	got := svc.InsightGroups(context.Background(), appID)
	assert.Nil(t, got)

	assert.True(t, svc.IsLoading(appID))
	require.Eventually(t, func() bool { return gw.listCount() == 1 },
		time.Second, time.Millisecond)

	// Second read while the fetch is outstanding: still nil, no extra fetch.
	got = svc.InsightGroups(context.Background(), appID)
	assert.Nil(t, got)
	assert.Equal(t, 1, gw.listCount())

	close(gw.gate)
	require.Eventually(t, func() bool { return !svc.IsLoading(appID) },
		time.Second, time.Millisecond)
}

func TestFetchSortsGroupsStable(t *testing.T) {
	gw := &fakeGateway{}
	three := groupWithOrder(orderOf(3))
	one := groupWithOrder(orderOf(1))
	missing := groupWithOrder(nil)
	oneBis := groupWithOrder(orderOf(1))
	gw.setGroups([]api.InsightGroup{three, one, missing, oneBis})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	got, err := fetchWait(t, svc, appID)
	require.NoError(t, err)
	require.Len(t, got, 4)

	// Missing order sorts as 0, equal keys keep their relative order.
	assert.Equal(t, missing.ID, got[0].ID)
	assert.Equal(t, one.ID, got[1].ID)
	assert.Equal(t, oneBis.ID, got[2].ID)
	assert.Equal(t, three.ID, got[3].ID)
}

func TestFailedFetchLeavesCacheUntouched(t *testing.T) {
	gw := &fakeGateway{}
	g := groupWithOrder(orderOf(1))
	gw.setGroups([]api.InsightGroup{g})

	sink := errsink.New(5)
	svc := New(gw, sink)
	appID := uuid.New()

	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)

	before, ok := svc.LastLoad(appID)
	require.True(t, ok)

	gw.setListErr(errors.New("boom"))
	_, err = fetchWait(t, svc, appID)
	require.Error(t, err)

	// Last-known-good survives, timestamp unchanged, loading mark removed.
	got := svc.InsightGroups(context.Background(), appID)
	require.Len(t, got, 1)
	assert.Equal(t, g.ID, got[0].ID)

	after, ok := svc.LastLoad(appID)
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.False(t, svc.IsLoading(appID))
	assert.Equal(t, 1, sink.Len())
}

func TestStaleReadServesCachedAndRevalidates(t *testing.T) {
	gw := &fakeGateway{}
	g := groupWithOrder(orderOf(1))
	gw.setGroups([]api.InsightGroup{g})

	clk := newClock()
	svc := New(gw, errsink.New(5), WithClock(clk.now))
	appID := uuid.New()

	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)
	require.Equal(t, 1, gw.listCount())

	// Within the window: cached value, no fetch.
	clk.advance(4 * time.Minute)
	got := svc.InsightGroups(context.Background(), appID)
	require.Len(t, got, 1)
	assert.Equal(t, 1, gw.listCount())

	// Past the window: the stale value comes back immediately and a
	// background refetch is issued.
	clk.advance(2 * time.Minute)
	got = svc.InsightGroups(context.Background(), appID)
	require.Len(t, got, 1)
	assert.Equal(t, g.ID, got[0].ID)

	require.Eventually(t, func() bool { return gw.listCount() == 2 },
		time.Second, time.Millisecond)
}

func TestConfigurableMaxAge(t *testing.T) {
	gw := &fakeGateway{}
	gw.setGroups([]api.InsightGroup{groupWithOrder(nil)})

	clk := newClock()
	svc := New(gw, errsink.New(5), WithClock(clk.now), WithMaxAge(10*time.Second))
	appID := uuid.New()

	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)

	clk.advance(11 * time.Second)
	svc.InsightGroups(context.Background(), appID)
	require.Eventually(t, func() bool { return gw.listCount() == 2 },
		time.Second, time.Millisecond)
}

func TestUpdateInvalidatesAndRefetchesEvenOnWriteFailure(t *testing.T) {
	gw := &fakeGateway{}
	g := groupWithOrder(orderOf(1))
	gw.setGroups([]api.InsightGroup{g})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)
	require.Equal(t, 1, gw.listCount())

	gw.mu.Lock()
	gw.writeErr = errors.New("patch rejected")
	gw.mu.Unlock()

	done := make(chan error, 1)
	svc.UpdateInsightGroup(context.Background(), appID, g, func(_ *api.InsightGroup, err error) {
		done <- err
	})

	select {
	case err := <-done:
		// The callback carries the write's own failure, not the refetch's.
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("update did not settle")
	}

	// Exactly one refetch happened and repopulated the invalidated entry.
	assert.Equal(t, 2, gw.listCount())
	got := svc.InsightGroups(context.Background(), appID)
	assert.Len(t, got, 1)
	_, ok := svc.LastLoad(appID)
	assert.True(t, ok)
}

func TestDeleteInsightAlwaysRefetchesOnce(t *testing.T) {
	for _, fail := range []bool{false, true} {
		gw := &fakeGateway{}
		gw.setGroups([]api.InsightGroup{groupWithOrder(nil)})
		if fail {
			gw.writeErr = errors.New("delete rejected")
		}

		svc := New(gw, errsink.New(5))
		appID := uuid.New()

		done := make(chan struct{})
		svc.DeleteInsight(context.Background(), appID, uuid.New(), uuid.New(), func(_ string, _ error) {
			close(done)
		})

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("delete did not settle")
		}
		assert.Equal(t, 1, gw.listCount(), "fail=%v", fail)
	}
}

func TestCreateGroupReturnsCreateResult(t *testing.T) {
	gw := &fakeGateway{}
	created := groupWithOrder(orderOf(9))
	gw.wroteGroup = &created
	gw.setGroups([]api.InsightGroup{created})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	done := make(chan *api.InsightGroup, 1)
	svc.CreateInsightGroup(context.Background(), appID, "Retention", func(g *api.InsightGroup, err error) {
		require.NoError(t, err)
		done <- g
	})

	select {
	case g := <-done:
		require.NotNil(t, g)
		assert.Equal(t, created.ID, g.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("create did not settle")
	}
	assert.Equal(t, 1, gw.listCount())
}

func TestSelectionFollowsLoadedSet(t *testing.T) {
	gw := &fakeGateway{}
	g1 := groupWithOrder(orderOf(2))
	g2 := groupWithOrder(orderOf(1))
	gw.setGroups([]api.InsightGroup{g1, g2})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	// Cold read: no selection yet.
	svc.InsightGroups(context.Background(), appID)
	_, ok := svc.SelectedGroupID()
	assert.False(t, ok)

	require.Eventually(t, func() bool { return !svc.IsLoading(appID) },
		time.Second, time.Millisecond)

	// After the load, the selection points at the first group by order (g2).
	selected, ok := svc.SelectedGroupID()
	require.True(t, ok)
	assert.Equal(t, g2.ID, selected)

	// An explicit selection of a known group sticks.
	require.True(t, svc.Select(appID, g1.ID))
	got := svc.InsightGroups(context.Background(), appID)
	require.Len(t, got, 2)
	selected, _ = svc.SelectedGroupID()
	assert.Equal(t, g1.ID, selected)

	// Selecting an unknown group is refused.
	assert.False(t, svc.Select(appID, uuid.New()))

	// A fresh load without the selected group reassigns to the first one.
	g3 := groupWithOrder(orderOf(5))
	gw.setGroups([]api.InsightGroup{g2, g3})
	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)
	selected, ok = svc.SelectedGroupID()
	require.True(t, ok)
	assert.Equal(t, g2.ID, selected)

	// An empty load clears the selection.
	gw.setGroups(nil)
	_, err = fetchWait(t, svc, appID)
	require.NoError(t, err)
	_, ok = svc.SelectedGroupID()
	assert.False(t, ok)
}

func TestColdLoadScenario(t *testing.T) {
	gw := &fakeGateway{}
	gA := api.InsightGroup{ID: uuid.New(), Title: "g1", Order: orderOf(2)}
	gB := api.InsightGroup{ID: uuid.New(), Title: "g2", Order: orderOf(1)}
	gw.setGroups([]api.InsightGroup{gA, gB})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	assert.Nil(t, svc.InsightGroups(context.Background(), appID))

	require.Eventually(t, func() bool {
		_, ok := svc.LastLoad(appID)
		return ok
	}, time.Second, time.Millisecond)

	got := svc.InsightGroups(context.Background(), appID)
	require.Len(t, got, 2)
	assert.Equal(t, gB.ID, got[0].ID)
	assert.Equal(t, gA.ID, got[1].ID)
	assert.False(t, svc.IsLoading(appID))

	selected, ok := svc.SelectedGroupID()
	require.True(t, ok)
	assert.Equal(t, gB.ID, selected)
}

func TestGroupMissOnFreshCacheTriggersRefetch(t *testing.T) {
	gw := &fakeGateway{}
	g := groupWithOrder(orderOf(1))
	gw.setGroups([]api.InsightGroup{g})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)
	require.Equal(t, 1, gw.listCount())

	// Known group: plain cache hit, no fetch.
	hit := svc.InsightGroup(context.Background(), g.ID, appID)
	require.NotNil(t, hit)
	assert.Equal(t, g.ID, hit.ID)
	assert.Equal(t, 1, gw.listCount())

	// Unknown group against a fresh cache: treated as a miss for that group.
	miss := svc.InsightGroup(context.Background(), uuid.New(), appID)
	assert.Nil(t, miss)
	require.Eventually(t, func() bool { return gw.listCount() == 2 },
		time.Second, time.Millisecond)
}

func TestInsightIsPureLookup(t *testing.T) {
	gw := &fakeGateway{}
	in := api.Insight{ID: uuid.New(), Title: "Daily actives"}
	g := api.InsightGroup{ID: uuid.New(), Title: "KPIs", Insights: []api.Insight{in}}
	gw.setGroups([]api.InsightGroup{g})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)
	calls := gw.listCount()

	got := svc.Insight(context.Background(), in.ID, g.ID, appID)
	require.NotNil(t, got)
	assert.Equal(t, in.ID, got.ID)

	// A missing insight inside a present group does not fetch anything.
	assert.Nil(t, svc.Insight(context.Background(), uuid.New(), g.ID, appID))
	assert.Equal(t, calls, gw.listCount())
}

func TestSubscribeSignalsOnChange(t *testing.T) {
	gw := &fakeGateway{}
	gw.setGroups([]api.InsightGroup{groupWithOrder(nil)})

	svc := New(gw, errsink.New(5))
	appID := uuid.New()

	ch, cancel := svc.Subscribe()
	defer cancel()

	_, err := fetchWait(t, svc, appID)
	require.NoError(t, err)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal received")
	}
}
