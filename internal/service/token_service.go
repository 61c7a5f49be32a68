package service

import (
	"errors"
	"fmt"
	"time"

	"casino-engine/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenLeeway absorbs clock skew between the issuer and this engine.
const tokenLeeway = 30 * time.Second

var errNoPlayer = errors.New("token subject is not a player id")

// JWTTokenService checks HS256 session tokens whose subject is the player id.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	parser *jwt.Parser
}

func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(tokenLeeway),
		),
	}
}

// Generate signs a session token for userID.
func (s *JWTTokenService) Generate(userID uuid.UUID) (string, time.Time, error) {
	issued := time.Now()
	expires := issued.Add(s.expiry)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, expires, nil
}

// Validate verifies signature, issuer and expiry, then resolves the player.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	var claims jwt.RegisteredClaims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, s.key); err != nil {
		return nil, fmt.Errorf("verifying session token: %w", err)
	}

	playerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errNoPlayer, claims.Subject)
	}
	return &ports.TokenClaims{UserID: playerID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *JWTTokenService) key(*jwt.Token) (interface{}, error) {
	return s.secret, nil
}
