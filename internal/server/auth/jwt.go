// Package auth mints and verifies the HS256 access tokens that bind a
// request to one guardian.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims plus the guardian the token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	GuardianID string `json:"guardian_id"`
}

func GenerateToken(guardianID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   guardianID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		GuardianID: guardianID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetGuardianIDFromToken validates tokenString and returns its guardian id.
// Expired tokens yield common.ErrTokenExpired, every other failure
// common.ErrInvalidToken.
func GetGuardianIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.GuardianID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.GuardianID, nil
}
