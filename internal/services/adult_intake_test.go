package services

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/models"
)

func adultForm() url.Values {
	return url.Values{
		"firstName0":       {"Nora"},
		"lastName0":        {"Vance"},
		"email0":           {"Nora.Vance@Example.com"},
		"phone0":           {"415-555-0199"},
		"gender0":          {"Female"},
		"size0":            {"m"},
		"dob0":             {"1990-04-12"},
		"preferredContact": {"email"},
		"firstName2":       {"Eli"},
		"lastName2":        {"Vance"},
		"gender2":          {"male"},
		"size2":            {"XL"},
	}
}

func TestParseAdultIntake(t *testing.T) {
	p, adults, err := ParseAdultIntake(adultForm())
	require.NoError(t, err)

	assert.Equal(t, "nora.vance@example.com", p.Email)
	assert.Equal(t, "+14155550199", p.Phone)
	assert.Equal(t, "Nora", p.FirstName)

	require.Len(t, adults, 2)
	assert.Equal(t, "female", adults[0].Gender)
	assert.Equal(t, "M", adults[0].Size)
	require.NotNil(t, adults[0].BirthDate)
	assert.Equal(t, 1990, adults[0].BirthDate.Year())
	assert.Equal(t, 2, adults[1].Index)
	assert.Nil(t, adults[1].BirthDate)
}

func TestParseAdultIntake_Errors(t *testing.T) {
	form := adultForm()
	form.Del("phone0")
	form.Set("size2", "huge")
	form.Set("gender2", "")
	form.Set("dob0", "12/04/1990")
	form.Set("preferredContact", "facebook")

	_, _, err := ParseAdultIntake(form)
	var verr ValidationErrors
	require.True(t, errors.As(err, &verr))
	for _, f := range []string{"phone0", "size2", "gender2", "dob0", "facebookProfileLink"} {
		assert.Contains(t, verr, f)
	}

	_, _, err = ParseAdultIntake(url.Values{"email0": {"a@b.co"}, "phone0": {"4155550199"}, "preferredContact": {"text"}})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr, "firstName0")
}

func TestSubmitAdultIntake(t *testing.T) {
	svc, _ := newIntake(t)
	ctx := context.Background()

	p, adults, err := ParseAdultIntake(adultForm())
	require.NoError(t, err)
	res, err := svc.SubmitAdultIntake(ctx, p, adults)
	require.NoError(t, err)
	assert.True(t, res.NewAccount)
	assert.Len(t, res.Password, 16)
	require.Len(t, res.Adults, 2)
	assert.Equal(t, res.UserID, res.Adults[0].UserID)

	// Same names again update in place.
	form := adultForm()
	form.Set("size2", "L")
	p, adults, err = ParseAdultIntake(form)
	require.NoError(t, err)
	again, err := svc.SubmitAdultIntake(ctx, p, adults)
	require.NoError(t, err)
	assert.False(t, again.NewAccount)
	assert.Equal(t, res.Adults[1].ID, again.Adults[1].ID)
	assert.Equal(t, "L", again.Adults[1].Size)

	var n int64
	require.NoError(t, svc.db.Model(&models.Adult{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	// The account is shared with child intake: same email, same user.
	cp, kids, err := ParseChildIntake(url.Values{
		"parentFirstName": {"Nora"},
		"parentLastName":  {"Vance"},
		"email":           {"nora.vance@example.com"},
		"childName0":      {"Pip"},
		"childGender0":    {"female"},
		"childDob0":       {"2023-01-01"},
		"childWeight0":    {"20"},
		"childHeight0":    {"30"},
	})
	require.NoError(t, err)
	cres, err := svc.SubmitChildIntake(ctx, cp, kids)
	require.NoError(t, err)
	assert.Equal(t, res.UserID, cres.UserID)
	assert.False(t, cres.NewAccount)
}

func TestAdultApproval(t *testing.T) {
	svc, _ := newIntake(t)
	shoots := NewShootService(svc.db)
	ctx := context.Background()

	p, adults, err := ParseAdultIntake(adultForm())
	require.NoError(t, err)
	res, err := svc.SubmitAdultIntake(ctx, p, adults)
	require.NoError(t, err)

	client, err := shoots.CreateClient(ctx, "Acme", "a@acme.com", "password1", nil)
	require.NoError(t, err)
	shoot, err := shoots.CreateShoot(ctx, client.ID, "Spring", nil)
	require.NoError(t, err)

	yes := true
	a, err := shoots.SetApproval(ctx, shoot.ID, models.ModelTypeAdult, res.Adults[1].ID, &yes, "")
	require.NoError(t, err)
	assert.Equal(t, models.ModelTypeAdult, a.ModelType)

	// Dropping Eli from the account removes his approval too.
	kept := adults[:1]
	saved, err := svc.SaveAdults(ctx, res.UserID, kept)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, res.Adults[0].ID, saved[0].ID)

	list, err := shoots.Approvals(ctx, shoot.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	var n int64
	require.NoError(t, svc.db.Model(&models.Adult{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	_, err = svc.SaveAdults(ctx, 9999, kept)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestParentAccount(t *testing.T) {
	svc, _ := newIntake(t)
	ctx := context.Background()

	p, kids, err := ParseChildIntake(intakeForm())
	require.NoError(t, err)
	res, err := svc.SubmitChildIntake(ctx, p, kids)
	require.NoError(t, err)

	u, err := svc.AuthenticateParent(ctx, " ROSA.DIAZ@example.com", res.Password)
	require.NoError(t, err)
	assert.Equal(t, res.UserID, u.ID)
	_, err = svc.AuthenticateParent(ctx, "rosa.diaz@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.AuthenticateParent(ctx, "nobody@example.com", res.Password)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, svc.ChangeParentPassword(ctx, u.ID, "wrong", "longenough1"), ErrInvalidCredentials)
	var verr ValidationErrors
	assert.True(t, errors.As(svc.ChangeParentPassword(ctx, u.ID, res.Password, "short"), &verr))
	require.NoError(t, svc.ChangeParentPassword(ctx, u.ID, res.Password, "longenough1"))
	_, err = svc.AuthenticateParent(ctx, "rosa.diaz@example.com", "longenough1")
	assert.NoError(t, err)

	assert.NoError(t, svc.ChildOfParent(ctx, res.Children[0].ChildID, u.ID))
	other := seedChild(t, svc.db, "Zed")
	assert.ErrorIs(t, svc.ChildOfParent(ctx, other.ID, u.ID), gorm.ErrRecordNotFound)
}
