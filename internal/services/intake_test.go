package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/models"
)

func intakeForm() url.Values {
	return url.Values{
		"parentFirstName":  {"Rosa"},
		"parentLastName":   {"Diaz"},
		"email":            {" Rosa.Diaz@Example.com "},
		"parentPhone":      {"(415) 555-0134"},
		"preferredContact": {"Text"},
		"hasModeled":       {"true"},
		"brands":           {"Gap, Carter's"},
		"childName0":       {"Mia"},
		"childLastName0":   {"Diaz"},
		"childGender0":     {"female"},
		"childDob0":        {"2023-05-01"},
		"childWeight0":     {"20"},
		"childHeight0":     {"30"},
		"childName3":       {"Leo"},
		"childGender3":     {"Male"},
		"childDob3":        {"2019-02-11"},
		"childWeight3":     {"31"},
		"childHeight3":     {"38"},
	}
}

func TestParseChildIntake(t *testing.T) {
	p, kids, err := ParseChildIntake(intakeForm())
	require.NoError(t, err)

	assert.Equal(t, "rosa.diaz@example.com", p.Email)
	assert.Equal(t, "+14155550134", p.Phone)
	assert.Equal(t, "text", p.PreferredContact)
	assert.True(t, p.HasModeledBefore)

	require.Len(t, kids, 2)
	assert.Equal(t, 0, kids[0].Index)
	assert.Equal(t, "Mia", kids[0].FirstName)
	assert.Equal(t, 3, kids[1].Index)
	assert.Equal(t, "male", kids[1].Gender)
	assert.Equal(t, "31", kids[1].Weight)
	assert.Equal(t, 2019, kids[1].BirthDate.Year())
}

func TestParseChildIntake_Errors(t *testing.T) {
	form := intakeForm()
	form.Set("email", "not-an-email")
	form.Set("parentPhone", "12")
	form.Set("childWeight0", "heavy")
	form.Set("childDob3", "11/02/2019")
	form.Set("childGender3", "robot")
	form.Del("parentFirstName")

	_, _, err := ParseChildIntake(form)
	var verr ValidationErrors
	require.True(t, errors.As(err, &verr))
	for _, f := range []string{"email", "parentPhone", "childWeight0", "childDob3", "childGender3", "parentFirstName"} {
		assert.Contains(t, verr, f)
	}
	assert.NotContains(t, verr, "childName0")
}

func TestParseChildIntake_NoChildren(t *testing.T) {
	form := url.Values{
		"parentFirstName": {"A"},
		"parentLastName":  {"B"},
		"email":           {"a@b.co"},
	}
	_, _, err := ParseChildIntake(form)
	var verr ValidationErrors
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr, "childName0")
}

func newIntake(t *testing.T) (*IntakeService, *SizeReconciler) {
	t.Helper()
	gdb := newTestDB(t)
	sizes := newReconciler(t, gdb)
	return NewIntakeService(gdb, sizes, zap.NewNop()), sizes
}

func TestSubmitChildIntake(t *testing.T) {
	svc, sizes := newIntake(t)
	ctx := context.Background()

	p, kids, err := ParseChildIntake(intakeForm())
	require.NoError(t, err)

	res, err := svc.SubmitChildIntake(ctx, p, kids)
	require.NoError(t, err)
	assert.True(t, res.NewAccount)
	assert.Len(t, res.Password, 16)
	require.Len(t, res.Children, 2)
	assert.Equal(t, []string{"6-9 Months", "6-12 Months", "9-12 Months"}, res.Children[0].Sizes)
	assert.Equal(t, []string{"3T-4T"}, res.Children[1].Sizes)

	var user models.User
	require.NoError(t, svc.db.First(&user, res.UserID).Error)
	assert.True(t, CheckPassword(user.PasswordHash, res.Password))

	ids, err := sizes.ChildrenWithSize(ctx, "3T-4T")
	require.NoError(t, err)
	assert.Equal(t, []uint{res.Children[1].ChildID}, ids)

	// Resubmitting with new measurements updates the same children.
	form := intakeForm()
	form.Set("childWeight0", "25")
	p, kids, err = ParseChildIntake(form)
	require.NoError(t, err)
	again, err := svc.SubmitChildIntake(ctx, p, kids)
	require.NoError(t, err)
	assert.False(t, again.NewAccount)
	assert.Empty(t, again.Password)
	assert.Equal(t, res.UserID, again.UserID)
	assert.Equal(t, res.Children[0].ChildID, again.Children[0].ChildID)
	assert.Equal(t, []string{"18-24 Months"}, again.Children[0].Sizes)

	var n int64
	require.NoError(t, svc.db.Model(&models.Child{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestSubmitChildIntake_NoSizeRollsBack(t *testing.T) {
	svc, _ := newIntake(t)

	form := intakeForm()
	form.Set("childWeight3", "5.5")
	p, kids, err := ParseChildIntake(form)
	require.NoError(t, err)

	_, err = svc.SubmitChildIntake(context.Background(), p, kids)
	require.ErrorIs(t, err, ErrNoApplicableSize)

	var users, children, rows int64
	svc.db.Model(&models.User{}).Count(&users)
	svc.db.Model(&models.Child{}).Count(&children)
	svc.db.Model(&models.ChildSize{}).Count(&rows)
	assert.Zero(t, users)
	assert.Zero(t, children)
	assert.Zero(t, rows)
}

func TestUpdateAndDeleteChild(t *testing.T) {
	svc, sizes := newIntake(t)
	ctx := context.Background()

	p, kids, err := ParseChildIntake(intakeForm())
	require.NoError(t, err)
	res, err := svc.SubmitChildIntake(ctx, p, kids)
	require.NoError(t, err)
	id := res.Children[0].ChildID

	labels, err := svc.UpdateChildMeasurements(ctx, id, "90", "50")
	require.NoError(t, err)
	assert.Equal(t, []string{"7Y-8Y", "10Y-12Y"}, labels)

	_, err = svc.UpdateChildMeasurements(ctx, id, "abc", "50")
	assert.ErrorIs(t, err, ErrNoApplicableSize)

	require.NoError(t, svc.DeleteChild(ctx, id))
	rows, err := sizes.ChildSizes(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Error(t, svc.DeleteChild(ctx, id))
}

func TestSubmitChildIntake_ConcurrentWithReconcile(t *testing.T) {
	svc, sizes := newIntake(t)
	ctx := context.Background()

	p, kids, err := ParseChildIntake(intakeForm())
	require.NoError(t, err)
	res, err := svc.SubmitChildIntake(ctx, p, kids)
	require.NoError(t, err)
	id := res.Children[0].ChildID

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitChildIntake(ctx, p, kids)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := sizes.Reconcile(ctx, id, 25, 30)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Whichever writer ran last, the rows form one complete set.
	rows, err := sizes.ChildSizes(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	primaries := 0
	for _, r := range rows {
		if r.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
	switch rows[0].Size {
	case "6-9 Months":
		assert.Len(t, rows, 3)
	case "18-24 Months":
		assert.Len(t, rows, 1)
	default:
		t.Fatalf("unexpected primary %q", rows[0].Size)
	}
}
