// Package auth issues and validates the board-session tokens handed out at
// join time.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/boardsync/internal/common"
)

// Claims carries the session's identity alongside the standard claims.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	BoardID   string `json:"bid"`
}

func GenerateToken(sessionID, boardID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		SessionID: sessionID,
		BoardID:   boardID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken returns the session and board ids encoded in the token.
// Expired tokens map to common.ErrTokenExpired, everything else invalid to
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (sessionID, boardID string, err error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", common.ErrTokenExpired
		}
		return "", "", common.ErrInvalidToken
	}

	if !token.Valid || claims.SessionID == "" {
		return "", "", common.ErrInvalidToken
	}

	return claims.SessionID, claims.BoardID, nil
}
