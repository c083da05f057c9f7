package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

func TestTokenValidator_RoundTrip(t *testing.T) {
	v := NewTokenValidator("s3cret", "clinic-auth", "clinic-finance")

	token, err := v.Sign(model.Claims{Subject: "staff-1", Email: "desk@clinic.test", Roles: []string{"billing"}}, time.Minute)
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.Subject)
	assert.True(t, claims.HasRole("billing"))
}

func TestTokenValidator_Rejects(t *testing.T) {
	v := NewTokenValidator("s3cret", "clinic-auth", "")

	expired, err := v.Sign(model.Claims{Subject: "staff-1"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenValidator("different", "clinic-auth", "")
	forged, err := other.Sign(model.Claims{Subject: "staff-1"}, time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewTokenValidator("s3cret", "elsewhere", "").Sign(model.Claims{Subject: "staff-1"}, time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
