package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	gatewayJWT "github.com/davicafu/postmesh/internal/gateway/infra/outbound/jwt"
	userDomain "github.com/davicafu/postmesh/internal/user/domain"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret!")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret!", hash)
	assert.NoError(t, h.Compare(hash, "s3cret!"))
	assert.Error(t, h.Compare(hash, "otra"))
}

func TestJWTIssuer_TokenAcceptedByGateway(t *testing.T) {
	issuer, err := NewJWTIssuer("shared-secret")
	require.NoError(t, err)
	verifier, err := gatewayJWT.NewHS256Verifier("shared-secret")
	require.NoError(t, err)
	u := userDomain.NewUser("pepe", "pepe@example.com", "hash", time.Now())

	token, err := issuer.Issue(u, time.Minute)
	require.NoError(t, err)
	id, err := verifier.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), id.UserID)
	assert.Equal(t, "pepe", id.Username)
}

func TestJWTIssuer_ExpiredTokenRejectedByGateway(t *testing.T) {
	issuer, _ := NewJWTIssuer("shared-secret")
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	verifier, _ := gatewayJWT.NewHS256Verifier("shared-secret")

	token, err := issuer.Issue(userDomain.NewUser("pepe", "p@example.com", "h", time.Now()), time.Hour)
	require.NoError(t, err)
	_, err = verifier.Verify(token)

	assert.Error(t, err)
}

func TestNewJWTIssuer_EmptySecret(t *testing.T) {
	_, err := NewJWTIssuer("")
	assert.Error(t, err)
}
