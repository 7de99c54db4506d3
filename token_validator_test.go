package paywall_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	paywall "github.com/goliatone/go-paywall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsFor(subject string) paywall.AuthClaims {
	return &paywall.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
}

func TestMultiTokenValidator(t *testing.T) {
	accept := func(subject string) paywall.TokenValidator {
		return paywall.TokenValidatorFunc(func(tokenString string) (paywall.AuthClaims, error) {
			return claimsFor(subject), nil
		})
	}

	reject := paywall.TokenValidatorFunc(func(tokenString string) (paywall.AuthClaims, error) {
		return nil, paywall.ErrTokenMalformed
	})

	t.Run("returns the first successful validation", func(t *testing.T) {
		validator := paywall.NewMultiTokenValidator(reject, accept("second"), accept("third"))

		claims, err := validator.Validate("token")

		require.NoError(t, err)
		assert.Equal(t, "second", claims.UserID())
	})

	t.Run("malformed errors fall through to the next validator", func(t *testing.T) {
		validator := paywall.NewMultiTokenValidator(reject, reject, accept("last"))

		claims, err := validator.Validate("token")

		require.NoError(t, err)
		assert.Equal(t, "last", claims.UserID())
	})

	t.Run("non malformed errors stop the chain", func(t *testing.T) {
		expired := paywall.TokenValidatorFunc(func(tokenString string) (paywall.AuthClaims, error) {
			return nil, paywall.ErrTokenExpired
		})

		validator := paywall.NewMultiTokenValidator(expired, accept("never"))

		claims, err := validator.Validate("token")

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, paywall.ErrTokenExpired)
	})

	t.Run("all validators failing returns the last malformed error", func(t *testing.T) {
		validator := paywall.NewMultiTokenValidator(reject, reject)

		claims, err := validator.Validate("token")

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, paywall.ErrTokenMalformed)
	})

	t.Run("empty validator set rejects everything", func(t *testing.T) {
		validator := paywall.NewMultiTokenValidator()

		claims, err := validator.Validate("token")

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, paywall.ErrTokenMalformed)
	})

	t.Run("nil validators are filtered out", func(t *testing.T) {
		validator := paywall.NewMultiTokenValidator(nil, accept("kept"), nil)

		claims, err := validator.Validate("token")

		require.NoError(t, err)
		assert.Equal(t, "kept", claims.UserID())
	})
}

func TestMultiTokenValidator_KeyRotation(t *testing.T) {
	issuer := "test-issuer"
	audience := jwt.ClaimStrings{"test-audience"}

	retired := paywall.NewTokenService([]byte("retired-signing-key"), 24, issuer, audience, nil)
	current := paywall.NewTokenService([]byte("current-signing-key"), 24, issuer, audience, nil)

	identity := &MockIdentity{}
	identity.On("ID").Return("user-123")
	identity.On("Email").Return("member@example.com")
	identity.On("Paid").Return(true)

	oldToken, err := retired.Generate(identity)
	require.NoError(t, err)

	validator := paywall.NewMultiTokenValidator(current, retired)

	t.Run("sessions from the retired key survive the rotation", func(t *testing.T) {
		claims, err := validator.Validate(oldToken)

		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
		assert.True(t, claims.Paid())
	})

	t.Run("garbage tokens are still rejected", func(t *testing.T) {
		claims, err := validator.Validate("not-a-token")

		assert.Nil(t, claims)
		assert.True(t, paywall.IsMalformedError(err))
	})
}
