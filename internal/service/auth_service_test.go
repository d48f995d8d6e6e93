package service

import (
	"testing"
	"time"

	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthService(secret string) *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret: secret,
		JWTExpiry: time.Hour,
	})
}

func TestParticipantTokenRoundTrip(t *testing.T) {
	svc := testAuthService("unit-test-secret")
	userID := uuid.New()

	token, err := svc.GenerateParticipantToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, TokenTypeParticipant, claims.TokenType)
	assert.NotEmpty(t, claims.ID, "tokens carry a unique jti")
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	minter := testAuthService("secret-a")
	verifier := testAuthService("secret-b")

	token, err := minter.GenerateParticipantToken(uuid.New())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(&config.Config{
		JWTSecret: "unit-test-secret",
		JWTExpiry: -time.Minute,
	})

	token, err := svc.GenerateParticipantToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := testAuthService("unit-test-secret")

	_, err := svc.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestValidateTokenRejectsMissingUserID(t *testing.T) {
	svc := testAuthService("unit-test-secret")

	// A structurally valid token signed with the right secret but without
	// a user id must not authenticate.
	bare := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType: TokenTypeParticipant,
	})
	signed, err := bare.SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsUnsignedAlgorithm(t *testing.T) {
	svc := testAuthService("unit-test-secret")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType: TokenTypeParticipant,
		UserID:    uuid.New(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "alg=none must not pass HMAC validation")
}
