package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/models"
)

func TestAcknowledgeAndResolve(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.AlertRule{Threshold: 20, ConsecutivityEnabled: true, ConsecutivityCount: 1})
	ctx := context.Background()

	alert, opened, err := f.manager.Escalate(ctx, f.vessel, rule, "Speed High: 25 > 20")
	require.NoError(t, err)
	require.True(t, opened)

	f.clock.Advance(time.Minute)
	acked, err := f.manager.AcknowledgeAlert(ctx, alert.ID, "duty-officer")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, acked.Status)
	assert.Equal(t, "duty-officer", acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)

	again, err := f.manager.AcknowledgeAlert(ctx, alert.ID, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, "duty-officer", again.AcknowledgedBy, "repeat acknowledge is a no-op")

	// The acknowledged alert is no longer active, so a new escalation opens
	// a fresh incident.
	second, opened, err := f.manager.Escalate(ctx, f.vessel, rule, "Speed High: 30 > 20")
	require.NoError(t, err)
	assert.True(t, opened)
	assert.NotEqual(t, alert.ID, second.ID)

	resolved, err := f.manager.ResolveAlert(ctx, alert.ID, "duty-officer")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	var vessel models.Vessel
	require.NoError(t, f.db.First(&vessel, f.vessel.ID).Error)
	assert.True(t, vessel.EmergencyAlertActive, "second alert still open")

	_, err = f.manager.ResolveAlert(ctx, second.ID, "duty-officer")
	require.NoError(t, err)
	require.NoError(t, f.db.First(&vessel, f.vessel.ID).Error)
	assert.False(t, vessel.EmergencyAlertActive)

	_, err = f.manager.ResolveAlert(ctx, second.ID, "duty-officer")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.manager.AcknowledgeAlert(ctx, second.ID, "duty-officer")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.manager.AcknowledgeAlert(ctx, 9999, "duty-officer")
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = f.manager.GetAlert(ctx, 9999)
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestPagingSentOnlyWhenPagerSucceeds(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	rule := f.rule(t, models.AlertRule{Threshold: 20})
	alert, _, err := f.manager.Escalate(ctx, f.vessel, rule, "default pager")
	require.NoError(t, err)
	assert.False(t, alert.PagingSent)

	var pages int
	paging := newFixture(t, WithPager(PagerFunc(func(context.Context, *models.Alert, *models.Vessel) (bool, error) {
		pages++
		return true, nil
	})))
	rule = paging.rule(t, models.AlertRule{Threshold: 20})
	alert, _, err = paging.manager.Escalate(ctx, paging.vessel, rule, "paged")
	require.NoError(t, err)
	assert.True(t, alert.PagingSent)

	// Repeats do not page again.
	_, _, err = paging.manager.Escalate(ctx, paging.vessel, rule, "paged")
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	failing := newFixture(t, WithPager(PagerFunc(func(context.Context, *models.Alert, *models.Vessel) (bool, error) {
		return false, errors.New("pager gateway down")
	})))
	rule = failing.rule(t, models.AlertRule{Threshold: 20})
	alert, opened, err := failing.manager.Escalate(ctx, failing.vessel, rule, "not paged")
	require.NoError(t, err, "paging failure does not fail the escalation")
	assert.True(t, opened)
	assert.False(t, alert.PagingSent)
}

func TestConcurrentEscalationsKeepOneActiveAlert(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.AlertRule{Threshold: 20})
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.manager.Escalate(ctx, f.vessel, rule, "race"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	alerts := f.alerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, workers-1, alerts[0].RepeatCount)
}

func TestListAlertsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.rule(t, models.AlertRule{Name: "A", Threshold: 1})
	b := f.rule(t, models.AlertRule{Name: "B", Threshold: 1})
	c := f.rule(t, models.AlertRule{Name: "C", Threshold: 1})

	first, _, err := f.manager.Escalate(ctx, f.vessel, a, "a")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, _, err := f.manager.Escalate(ctx, f.vessel, b, "b")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, _, err = f.manager.Escalate(ctx, f.vessel, c, "c")
	require.NoError(t, err)

	_, err = f.manager.AcknowledgeAlert(ctx, second.ID, "ops")
	require.NoError(t, err)
	_, err = f.manager.ResolveAlert(ctx, first.ID, "ops")
	require.NoError(t, err)

	all, err := f.manager.ListAlerts(ctx, AlertFilter{VesselID: f.vessel.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].AlertText, "newest first")

	since := t0.Add(30 * time.Second)
	recent, err := f.manager.ListAlerts(ctx, AlertFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := f.manager.ListAlerts(ctx, AlertFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	active, err := f.manager.ActiveAlerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, c.ID, active[0].RuleID)

	stats, err := f.manager.Stats(ctx, f.vessel.ID)
	require.NoError(t, err)
	assert.Equal(t, AlertStats{Total: 3, Active: 1, Acknowledged: 1, Resolved: 1}, *stats)
}
