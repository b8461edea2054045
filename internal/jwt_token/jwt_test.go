package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "aims/pkg/domain-errors"
)

func TestJWTService(t *testing.T) {
	svc := NewJWTService("test-signing-key", "aims")

	t.Run("round trip", func(t *testing.T) {
		token, err := svc.GenerateToken(7, time.Minute)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, int64(7), claims.ActorID)
		assert.Equal(t, "7", claims.Subject)
		assert.Equal(t, "aims", claims.Issuer)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token, err := svc.GenerateToken(7, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		other := NewJWTService("other-key", "aims")
		token, err := other.GenerateToken(7, time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		require.Error(t, err)
	})
}
