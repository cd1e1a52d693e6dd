package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
)

// countingRepo records how many writes reached the store.
type countingRepo struct {
	store.Repository
	writes int
}

func (c *countingRepo) UpdateCondition(ctx context.Context, id string, cond bump.Condition, at time.Time) (bump.Record, error) {
	c.writes++
	return c.Repository.UpdateCondition(ctx, id, cond, at)
}

func newTracker(t *testing.T, mode bump.Mode, fold bool) (*Tracker, *countingRepo) {
	t.Helper()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []bump.Record{
		{ID: "a", StreetName: "Main Street", Condition: bump.HealthCondition(8000), LastUpdated: t0},
		{ID: "b", StreetName: "Oak Avenue", Condition: bump.HealthCondition(5000), LastUpdated: t0.Add(-time.Hour)},
		{ID: "c", StreetName: "Elm Street", Condition: bump.HealthCondition(1000), LastUpdated: t0.Add(-2 * time.Hour)},
	}
	if mode == bump.ModeStatus {
		for i := range recs {
			recs[i].Condition = bump.StatusCondition(recs[i].Status())
		}
	}
	repo := &countingRepo{Repository: store.NewMemory(mode, recs...)}
	return New(repo, Options{Mode: mode, FoldCritical: fold}), repo
}

func listIDs(t *testing.T, tr *Tracker, f bump.Filter) []string {
	t.Helper()
	recs, err := tr.List(context.Background(), f)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func TestList_Filters(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeHealth, false)
	assert.Equal(t, []string{"a", "b", "c"}, listIDs(t, tr, bump.FilterAll))
	assert.Equal(t, []string{"b"}, listIDs(t, tr, bump.FilterDamaged))
	assert.Equal(t, []string{"c"}, listIDs(t, tr, bump.FilterCritical))
}

func TestList_FoldCritical(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeStatus, true)
	assert.Equal(t, []string{"b", "c"}, listIDs(t, tr, bump.FilterDamaged))
}

func TestUpdateCondition_RejectsOutOfRangeBeforeStore(t *testing.T) {
	tr, repo := newTracker(t, bump.ModeHealth, false)
	for _, h := range []int{-1, 10001} {
		_, err := tr.UpdateCondition(context.Background(), "a", bump.HealthCondition(h))
		var ve *bump.ValidationError
		require.ErrorAs(t, err, &ve, "health %d", h)
	}
	assert.Equal(t, 0, repo.writes, "no store call may happen for invalid input")
}

func TestUpdateCondition_RejectsWrongVariant(t *testing.T) {
	tr, repo := newTracker(t, bump.ModeHealth, false)
	_, err := tr.UpdateCondition(context.Background(), "a", bump.StatusCondition(bump.StatusGood))
	var ve *bump.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, repo.writes)
}

func TestUpdateCondition_RoundTrip(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeHealth, false)
	var changes []bump.Change
	tr.Subscribe(func(c bump.Change) { changes = append(changes, c) })

	before := time.Now().UTC()
	rec, err := tr.UpdateCondition(context.Background(), "a", bump.HealthCondition(2500))
	require.NoError(t, err)
	assert.Equal(t, bump.StatusCritical, rec.Status())
	assert.False(t, rec.LastUpdated.Before(before), "last_updated %v is before the call at %v", rec.LastUpdated, before)

	ids := listIDs(t, tr, bump.FilterCritical)
	assert.Contains(t, ids, "a")
	assert.Equal(t, "a", listIDs(t, tr, bump.FilterAll)[0], "updated record sorts first")

	require.Len(t, changes, 1)
	assert.Equal(t, bump.SourceOperator, changes[0].Source)
	assert.Equal(t, "a", changes[0].Record.ID)
}

func TestUpdateCondition_Boundaries(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeHealth, false)
	tests := []struct {
		health int
		want   bump.Status
	}{
		{7000, bump.StatusGood},
		{6999, bump.StatusDamaged},
		{3000, bump.StatusDamaged},
		{2999, bump.StatusCritical},
		{0, bump.StatusCritical},
		{10000, bump.StatusGood},
	}
	for _, tc := range tests {
		rec, err := tr.UpdateCondition(context.Background(), "b", bump.HealthCondition(tc.health))
		require.NoError(t, err)
		assert.Equal(t, tc.want, rec.Status(), "health %d", tc.health)
	}
}

func TestUpdateCondition_UnknownID(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeHealth, false)
	notified := false
	tr.Subscribe(func(bump.Change) { notified = true })
	_, err := tr.UpdateCondition(context.Background(), "zzz", bump.HealthCondition(5000))
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.False(t, notified)
}

func TestUpdateCondition_StatusMode(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeStatus, false)
	rec, err := tr.UpdateCondition(context.Background(), "a", bump.StatusCondition(bump.StatusCritical))
	require.NoError(t, err)
	assert.Equal(t, bump.StatusCritical, rec.Status())
}

func TestApplyImpact_SpeedsToDamage(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeHealth, false)
	var got []bump.Change
	tr.Subscribe(func(c bump.Change) { got = append(got, c) })

	// 30 km/h is under the limit; 50 and 60 cost 25 and 36.
	rec, err := tr.ApplyImpact(context.Background(), Impact{
		BumpID:    "a",
		Vehicles:  3,
		SpeedsKmh: []float64{30, 50, 60},
	})
	require.NoError(t, err)
	h, _ := rec.Condition.Health()
	assert.Equal(t, 8000-61, h)
	assert.EqualValues(t, 3, rec.CarCount)
	require.Len(t, got, 1)
	assert.Equal(t, bump.SourceImpact, got[0].Source)
}

func TestApplyImpact_ObservedAtStampsRecord(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeHealth, false)
	observed := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Second)

	rec, err := tr.ApplyImpact(context.Background(), Impact{BumpID: "b", Vehicles: 1, ObservedAt: observed})
	require.NoError(t, err)
	assert.True(t, rec.LastUpdated.Equal(observed), "last_updated %v, want %v", rec.LastUpdated, observed)

	before := time.Now().UTC()
	rec, err = tr.ApplyImpact(context.Background(), Impact{BumpID: "b", Vehicles: 1, ObservedAt: before.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, rec.LastUpdated.After(time.Now().UTC()), "future observation is clamped to now")
	assert.False(t, rec.LastUpdated.Before(before))
}

func TestApplyImpact_Invalid(t *testing.T) {
	tr, _ := newTracker(t, bump.ModeHealth, false)
	for _, im := range []Impact{
		{},
		{BumpID: "a", Vehicles: -1},
		{BumpID: "a", Damage: -5},
	} {
		_, err := tr.ApplyImpact(context.Background(), im)
		var ve *bump.ValidationError
		assert.ErrorAs(t, err, &ve, "%+v", im)
	}
}

func TestList_UnconfiguredStore(t *testing.T) {
	tr := New(store.NewUnconfigured(errors.New("url missing")), Options{})
	_, err := tr.List(context.Background(), bump.FilterAll)
	assert.ErrorIs(t, err, store.ErrNotConfigured)
}
