package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/carenet/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// AccessTokenTTL is the fixed lifetime of a session token.
	AccessTokenTTL = time.Hour
	// PendingTokenTTL bounds the gap between the password and MFA steps.
	PendingTokenTTL = 5 * time.Minute
)

var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the identity snapshot carried by a session token.
type Claims struct {
	ID         int        `json:"id"`
	Username   string     `json:"username"`
	Role       types.Role `json:"role"`
	MFAPending bool       `json:"mfa_pending,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	return &TokenService{secret: s.secret, now: now}
}

// Issue signs a one-hour session token for user.
func (s *TokenService) Issue(user types.User) (string, error) {
	return s.sign(Claims{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, AccessTokenTTL)
}

// Verify decodes a session token. Pending MFA tokens are rejected.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.MFAPending {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// IssuePending signs a short-lived token proving that userID passed the
// password step.
func (s *TokenService) IssuePending(userID int) (string, error) {
	return s.sign(Claims{ID: userID, MFAPending: true}, PendingTokenTTL)
}

// VerifyPending decodes a pending token and returns the bound user id.
func (s *TokenService) VerifyPending(tokenString string) (int, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return 0, err
	}
	if !claims.MFAPending {
		return 0, ErrTokenMalformed
	}
	return claims.ID, nil
}

func (s *TokenService) sign(claims Claims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
