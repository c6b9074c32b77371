// Package auth provides token-based authentication for the API and the
// realtime transport.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors returned by the auth service.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrMissingClaims    = errors.New("missing required claims")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Claims represents the JWT claims structure.
type Claims struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Exp    time.Time `json:"exp"`
}

// Config holds authentication configuration.
type Config struct {
	JWTSecret   []byte
	TokenExpiry time.Duration
}

// Service provides token issuance and verification. The same tokens
// authenticate HTTP requests and websocket handshakes: a transport
// connection may only join a user address after its token verifies.
type Service struct {
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      *slog.Logger
}

// NewService creates a new authentication service.
func NewService(cfg *Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jwtSecret:   cfg.JWTSecret,
		tokenExpiry: cfg.TokenExpiry,
		logger:      logger,
	}
}

// GenerateToken creates a new JWT token for the given user.
func (s *Service) GenerateToken(userID, email string) (string, error) {
	if userID == "" {
		return "", ErrMissingClaims
	}

	now := time.Now()
	exp := now.Add(s.tokenExpiry)

	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
		"nbf":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := mapClaims["sub"].(string)
	if !ok || userID == "" {
		return nil, ErrMissingClaims
	}

	email, _ := mapClaims["email"].(string)

	expFloat, ok := mapClaims["exp"].(float64)
	if !ok {
		return nil, ErrMissingClaims
	}
	exp := time.Unix(int64(expFloat), 0)

	return &Claims{
		UserID: userID,
		Email:  email,
		Exp:    exp,
	}, nil
}

// ExtractBearerToken extracts the token from a Bearer authorization header.
func ExtractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
