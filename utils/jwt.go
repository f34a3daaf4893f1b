package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campus-chat/models"
)

// GenerateJWT issues an HS256 token carrying the (id, role) identity. The
// role travels in the claims because numeric ids are not unique across roles.
func GenerateJWT(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"uid":  identity.ID,
		"role": string(identity.Role),
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
		"iss":  "campus-chat",
		"sub":  "user-auth",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT verifies a token and returns the identity it carries. Every
// caller-facing surface (REST and the live transport) derives identity
// through here, never from client-supplied fields.
func ParseJWT(secret, tokenStr string) (models.Identity, error) {
	if tokenStr == "" {
		return models.Identity{}, errors.New("token is empty")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return models.Identity{}, errors.New("invalid token")
	}

	if !token.Valid {
		return models.Identity{}, errors.New("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, errors.New("invalid claims")
	}

	uidF, ok1 := claims["uid"].(float64)
	roleStr, ok2 := claims["role"].(string)
	if !ok1 || !ok2 {
		return models.Identity{}, errors.New("bad claims")
	}

	role, err := models.ParseRole(roleStr)
	if err != nil {
		return models.Identity{}, errors.New("bad claims")
	}

	return models.Identity{ID: int(uidF), Role: role}, nil
}
