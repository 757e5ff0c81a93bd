package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/internal/pgtest"
	"github.com/dmitrymomot/memberkit/svc/application"
)

var required = []application.Field{
	{Name: "address", Required: true, MaxLen: 50},
	{Name: "phone", Required: true, MaxLen: 20},
}

func TestForms(t *testing.T) {
	pool := pgtest.Pool(t)
	forms := application.NewForms(pool, required)
	ctx := context.Background()

	ok, err := forms.HasApplied(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	err = forms.Save(ctx, 1, application.Answers{"address": "1 Main St"})
	assertFieldErrors(t, err, "phone")

	require.NoError(t, forms.Save(ctx, 1, application.Answers{"address": "1 Main St", "phone": "555", "extra": "dropped"}))
	ok, err = forms.HasApplied(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	answers, err := forms.Answers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, application.Answers{"address": "1 Main St", "phone": "555"}, answers)

	stricter := application.NewForms(pool, append(required, application.Field{Name: "dob", Required: true}))
	ok, err = stricter.HasApplied(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfile(t *testing.T) {
	pool := pgtest.Pool(t)
	profile := application.NewProfile(pool, required)
	ctx := context.Background()

	ok, err := profile.HasApplied(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	err = profile.Save(ctx, 2, application.Answers{"address": "", "phone": "12345678901234567890123"})
	assertFieldErrors(t, err, "address", "phone")

	require.NoError(t, profile.Save(ctx, 2, application.Answers{"address": "2 Side St", "phone": "555"}))
	ok, err = profile.HasApplied(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, profile.Save(ctx, 2, application.Answers{"address": "3 New St", "phone": "556"}))
	answers, err := profile.Answers(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "3 New St", answers["address"])

	ok, err = application.NewProfile(pool, nil).HasApplied(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)
}
