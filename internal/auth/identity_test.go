package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	tok, err := Sign("s3cret", Identity{ID: "u1", Email: "a@b.c", IsAdmin: true}, time.Hour)
	require.NoError(t, err)

	id, err := Parse("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Email: "a@b.c", IsAdmin: true}, id)
}

func TestParseRejects(t *testing.T) {
	tok, err := Sign("s3cret", Identity{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = Parse("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("s3cret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forever, err := Sign("s3cret", Identity{ID: "u1"}, 0)
	require.NoError(t, err)
	_, err = Parse("s3cret", forever)
	assert.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = Parse("s3cret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = Parse("s3cret", noneAlg)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Sign("", Identity{ID: "u1"}, time.Hour)
	assert.Error(t, err)
}
