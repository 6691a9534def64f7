package services

import (
	"fmt"
	"time"

	"main/model"
	"main/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GenerateSessionToken mints the opaque identifier a session record is keyed
// by. It is a bearer credential in its own right, so it must be unguessable.
func GenerateSessionToken() string {
	return uuid.New().String()
}

// GenerateAccessToken signs a JWT carrying the user's identity and the
// session it belongs to. The session_id claim is what ties the credential to
// a concrete session record; credentials minted before that claim existed
// resolve through the legacy path instead.
func GenerateAccessToken(user *model.User, roleName, positionName, sessionToken string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":    user.UserID,
		"email":      user.Email,
		"role":       roleName,
		"position":   positionName,
		"session_id": sessionToken,
		"iat":        now.Unix(),
		"exp":        now.Add(time.Duration(utils.JWTExpirationTime) * time.Second).Unix(),
		"iss":        utils.JWTIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(utils.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates signature and expiry and returns the claims.
// Every failure mode collapses to the same invalid-token error so callers
// cannot distinguish a forged token from an expired one.
func ParseAccessToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(utils.JWTSecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, model.ErrInvalidToken
	}
	return claims, nil
}
