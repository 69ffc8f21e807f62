package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/types"
)

func newTestIssuer() *Issuer {
	return NewIssuer(config.JWTConfig{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := newTestIssuer()

	pair, err := issuer.Issue(types.User{ID: 42})
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	access, err := issuer.ParseAccess(pair.Access)
	require.NoError(t, err)
	id, err := access.UserID()
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	refresh, err := issuer.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, access.ID, refresh.ID)
	assert.Equal(t, 24*time.Hour, refresh.ExpiresAt.Sub(refresh.IssuedAt.Time))
}

func TestIssuer_RejectsWrongType(t *testing.T) {
	issuer := newTestIssuer()
	pair, err := issuer.Issue(types.User{ID: 1})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(pair.Refresh)
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = issuer.ParseRefresh(pair.Access)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestIssuer_RejectsExpired(t *testing.T) {
	issuer := newTestIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := issuer.Issue(types.User{ID: 1})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ParseAccess(pair.Access)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = issuer.ParseRefresh(pair.Refresh)
	assert.NoError(t, err)
}

func TestIssuer_RejectsForeignSecret(t *testing.T) {
	pair, err := NewIssuer(config.JWTConfig{Secret: "other", AccessTTL: time.Hour, RefreshTTL: time.Hour}).Issue(types.User{ID: 1})
	require.NoError(t, err)

	_, err = newTestIssuer().ParseAccess(pair.Access)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestIssuer_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TypeAccess,
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestIssuer().ParseAccess(signed)
	assert.Error(t, err)
}
