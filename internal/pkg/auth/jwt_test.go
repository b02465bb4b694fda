package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/schoolhealth/internal/app/models"
)

func newService(exp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{SecretKey: "unit-secret", AccessTokenExp: exp, TokenIssuer: "schoolhealth.test"})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newService(time.Hour)
	actor := models.Actor{ID: 42, Role: models.RoleNurse}

	token, expiresIn, err := svc.GenerateAccessToken(actor)
	require.NoError(t, err)
	assert.Equal(t, 3600, expiresIn)

	claims, err := svc.ValidateAndExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
	assert.Equal(t, "schoolhealth.test", claims.Issuer)
	assert.Equal(t, "42", claims.Subject)
}

func TestExpiredToken(t *testing.T) {
	svc := newService(-time.Minute)
	token, _, err := svc.GenerateAccessToken(models.Actor{ID: 1, Role: models.RoleStaff})
	require.NoError(t, err)

	_, err = svc.ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRejectsForeignOrMalformedTokens(t *testing.T) {
	svc := newService(time.Hour)

	other := NewJWTService(JWTConfig{SecretKey: "someone-else", AccessTokenExp: time.Hour})
	foreign, _, err := other.GenerateAccessToken(models.Actor{ID: 1, Role: models.RoleStaff})
	require.NoError(t, err)
	_, err = svc.ValidateAndExtractClaims(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateAndExtractClaims("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// a well-signed token without a known role still carries no actor
	claims := &Claims{ActorID: 7, Role: "janitor", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateAndExtractClaims(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = ExtractBearerToken("abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	_, err = ExtractBearerToken("Basic dXNlcjpwYXNz")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = ExtractBearerToken("   ")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
