package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// WebhookTokenTTL bounds how long a signed webhook request stays valid.
const WebhookTokenTTL = 5 * time.Minute

// WebhookClaims are carried by signed spreadsheet webhook requests.
type WebhookClaims struct {
	Form string `json:"form"`
	jwt.RegisteredClaims
}

// SignWebhookToken signs an HS256 token identifying one submission event.
func SignWebhookToken(secret, eventID, form string, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("webhook secret is empty")
	}

	claims := &WebhookClaims{
		Form: form,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   eventID,
			ID:        eventID,
			ExpiresAt: jwt.NewNumericDate(now.Add(WebhookTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateWebhookToken verifies a token produced by SignWebhookToken and
// returns its claims.
func ValidateWebhookToken(secret, tokenString string) (*WebhookClaims, error) {
	claims := &WebhookClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
