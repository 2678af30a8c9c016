package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	userDomain "github.com/davicafu/postmesh/internal/user/domain"
)

// accessClaims es el formato que el gateway espera: userId y username.
type accessClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTIssuer firma access tokens HS256 con el secreto compartido con el gateway.
type JWTIssuer struct {
	secret []byte
	now    func() time.Time
}

var _ userDomain.AccessTokenIssuer = (*JWTIssuer)(nil)

func NewJWTIssuer(secret string) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTIssuer{secret: []byte(secret), now: time.Now}, nil
}

func (i *JWTIssuer) Issue(u *userDomain.User, ttl time.Duration) (string, error) {
	now := i.now()
	c := accessClaims{
		UserID:   u.ID.String(),
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}
