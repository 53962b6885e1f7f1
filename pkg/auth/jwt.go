package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Audience = "visitor-desk-api"

// Claims identify a staff member. Sub is 0 for phone (OTP) sessions, which are not
// bound to a users row.
type Claims struct {
	Sub      int64  `json:"sub"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	Method   string `json:"amr"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID   int64
	Username string
	Phone    string
	Role     string
	Method   string
}

func NewAccessToken(id Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:      id.UserID,
		Username: id.Username,
		Phone:    id.Phone,
		Role:     id.Role,
		Method:   id.Method,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{Audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(tokenString, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
