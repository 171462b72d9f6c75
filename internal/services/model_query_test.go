package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListChildren(t *testing.T) {
	gdb := newTestDB(t)
	sizes := newReconciler(t, gdb)
	q := NewModelQuery(gdb, sizes)
	q.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	ava := seedChild(t, gdb, "Ava")
	ben := seedChild(t, gdb, "Ben")
	cal := seedChild(t, gdb, "Cal")
	require.NoError(t, gdb.Model(&cal).Update("gender", "male").Error)
	for id, w := range map[uint]float64{ava.ID: 20, ben.ID: 17, cal.ID: 31} {
		_, err := sizes.Reconcile(ctx, id, w, 30)
		require.NoError(t, err)
	}

	page, err := q.ListChildren(ctx, ChildFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, "Ava", page.Rows[0].FirstName)
	assert.Equal(t, 4, page.Rows[0].AgeYears)
	assert.Equal(t, "Pat Parent", page.Rows[0].ParentName)
	require.Len(t, page.Rows[0].Sizes, 3)
	assert.Equal(t, SizeTag{Size: "6-9 Months", Primary: true}, page.Rows[0].Sizes[0])

	// Membership counts secondary sizes too.
	page, err = q.ListChildren(ctx, ChildFilter{Size: "6-12 Months"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = q.ListChildren(ctx, ChildFilter{Size: "2T"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Rows)

	page, err = q.ListChildren(ctx, ChildFilter{Gender: "MALE"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, cal.ID, page.Rows[0].ID)

	page, err = q.ListChildren(ctx, ChildFilter{Q: "be"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, ben.ID, page.Rows[0].ID)

	page, err = q.ListChildren(ctx, ChildFilter{Per: 2, Page: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Cal", page.Rows[0].FirstName)

	_, err = q.ListChildren(ctx, ChildFilter{Size: "XXL"})
	var verr ValidationErrors
	assert.True(t, errors.As(err, &verr))
}

func TestListChildren_SearchKeepsOtherFilters(t *testing.T) {
	gdb := newTestDB(t)
	sizes := newReconciler(t, gdb)
	q := NewModelQuery(gdb, sizes)
	ctx := context.Background()

	ava := seedChild(t, gdb, "Ava")
	ben := seedChild(t, gdb, "Ben")
	cal := seedChild(t, gdb, "Cal")
	for id, w := range map[uint]float64{ava.ID: 20, ben.ID: 17, cal.ID: 31} {
		_, err := sizes.Reconcile(ctx, id, w, 30)
		require.NoError(t, err)
	}

	// Every parent's last name matches "parent".
	page, err := q.ListChildren(ctx, ChildFilter{Size: "3T-4T", Q: "parent"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, cal.ID, page.Rows[0].ID)

	page, err = q.ListChildren(ctx, ChildFilter{Gender: "male", Q: "parent"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Rows)

	page, err = q.ListChildren(ctx, ChildFilter{Size: "6-12 Months", Gender: "female", Q: "ben"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, ben.ID, page.Rows[0].ID)
}

func TestListChildren_ByParent(t *testing.T) {
	gdb := newTestDB(t)
	q := NewModelQuery(gdb, newReconciler(t, gdb))
	ctx := context.Background()

	ava := seedChild(t, gdb, "Ava")
	seedChild(t, gdb, "Ben")

	page, err := q.ListChildren(ctx, ChildFilter{UserID: ava.UserID})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, ava.ID, page.Rows[0].ID)
}

func TestListAdults(t *testing.T) {
	svc, sizes := newIntake(t)
	q := NewModelQuery(svc.db, sizes)
	q.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	p, adults, err := ParseAdultIntake(adultForm())
	require.NoError(t, err)
	res, err := svc.SubmitAdultIntake(ctx, p, adults)
	require.NoError(t, err)

	page, err := q.ListAdults(ctx, AdultFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "Eli", page.Rows[0].FirstName)
	assert.Zero(t, page.Rows[0].AgeYears)
	assert.Equal(t, "Nora", page.Rows[1].FirstName)
	assert.Equal(t, 36, page.Rows[1].AgeYears)
	assert.Equal(t, "nora.vance@example.com", page.Rows[1].ParentEmail)

	page, err = q.ListAdults(ctx, AdultFilter{Size: "xl"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Eli", page.Rows[0].FirstName)

	// Every adult matches "vance"; the gender filter still applies.
	page, err = q.ListAdults(ctx, AdultFilter{Gender: "female", Q: "vance"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Nora", page.Rows[0].FirstName)

	page, err = q.ListAdults(ctx, AdultFilter{UserID: res.UserID + 1})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Rows)

	_, err = q.ListAdults(ctx, AdultFilter{Size: "6-9 Months"})
	var verr ValidationErrors
	assert.True(t, errors.As(err, &verr))
}
