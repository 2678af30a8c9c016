package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	gatewayDomain "github.com/davicafu/postmesh/internal/gateway/domain"
)

// claims coincide con lo que firma el servicio de usuarios.
type claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// HS256Verifier valida tokens firmados con un secreto compartido.
type HS256Verifier struct {
	secret []byte
}

var _ gatewayDomain.TokenVerifier = (*HS256Verifier)(nil)

func NewHS256Verifier(secret string) (*HS256Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &HS256Verifier{secret: []byte(secret)}, nil
}

func (v *HS256Verifier) Verify(token string) (*gatewayDomain.Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gatewayDomain.ErrInvalidToken, err)
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: no userId claim", gatewayDomain.ErrInvalidToken)
	}
	return &gatewayDomain.Identity{UserID: c.UserID, Username: c.Username}, nil
}

// Issue firma un token con el mismo formato (tests y entornos locales sin servicio de usuarios).
func (v *HS256Verifier) Issue(id gatewayDomain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		UserID:   id.UserID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}
