package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/pkg/middleware"
)

// Issuer is the issuer of access tokens the user service hands out.
const Issuer = "user-service"

// Claims are the access token claims shared with the user service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager validates shopper access tokens and mints the short-lived
// tokens the storefront presents to the user service on a shopper's behalf.
type JWTManager struct {
	secret []byte
	expiry time.Duration
}

// NewJWTManager creates a manager sharing secret with the user service.
func NewJWTManager(secret string, expiry time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), expiry: expiry}
}

// GenerateAccessToken creates a signed access token for userID.
func (m *JWTManager) GenerateAccessToken(userID, email string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			Issuer:    Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// TokenFor returns a bearer token for accountID's wishlist calls.
func (m *JWTManager) TokenFor(accountID string) (string, error) {
	return m.GenerateAccessToken(accountID, "")
}

// ValidateAccessToken parses and validates an access token.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("access token has no user_id")
	}
	return claims, nil
}

// Validate adapts ValidateAccessToken to middleware.TokenValidator.
func (m *JWTManager) Validate(token string) (*middleware.Claims, error) {
	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{AccountID: claims.UserID, Email: claims.Email}, nil
}
