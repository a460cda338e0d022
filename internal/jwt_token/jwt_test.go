package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

const actorID = domain.ActorID(7)

var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(actorID, domain.RoleAdmin, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(actorID, domain.RoleAdmin, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token has expired")
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "test-issuer", "other-audience")
	token, err := other.GenerateAccessToken(actorID, domain.RoleAdmin, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Adapter(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)

	t.Run("maps subject and role", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(actorID, domain.RoleInvestigator, expiresIn)
		require.NoError(t, err)

		claims, err := adapter.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, actorID, claims.ActorID)
		assert.Equal(t, domain.RoleInvestigator, claims.Role)
	})

	t.Run("rejects non-numeric subject", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Role: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				Issuer:    "test-issuer",
				Audience:  []string{"test-audience"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := tok.SignedString([]byte("test-signing-key"))
		require.NoError(t, err)

		_, err = adapter.ValidateToken(signed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func Test_ValidateToken_RequiresExpiry(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "7",
			Issuer:   "test-issuer",
			Audience: []string{"test-audience"},
		},
	})
	signed, err := tok.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(signed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    "test-issuer",
			Audience:  []string{"test-audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(signed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_Leeway(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	issuer := NewJWTService("test-signing-key", "test-issuer", "test-audience",
		WithClock(func() time.Time { return issuedAt }))
	token, err := issuer.GenerateAccessToken(actorID, domain.RoleAdmin, time.Hour-5*time.Second)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)

	lenient := NewJWTService("test-signing-key", "test-issuer", "test-audience", WithLeeway(30*time.Second))
	claims, err := lenient.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
}

func Test_GenerateAccessToken_RequiresActor(t *testing.T) {
	_, err := jwtService.GenerateAccessToken(0, domain.RoleAdmin, expiresIn)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
