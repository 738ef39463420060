package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are issued by the external auth provider. Only verification happens here.
type Claims struct {
	UserID    string `json:"uid"`
	CompanyID string `json:"cid"`
	RoleName  string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) Actor() (Actor, error) {
	role, ok := ParseRole(c.RoleName)
	if !ok {
		return Actor{}, errors.New("unknown role")
	}
	if c.UserID == "" || c.CompanyID == "" {
		return Actor{}, errors.New("incomplete claims")
	}
	return Actor{UserID: c.UserID, Role: role, CompanyID: c.CompanyID, SessionID: c.SessionID}, nil
}

// GenerateToken signs claims; used by tests and the token command to mint local tokens.
func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
