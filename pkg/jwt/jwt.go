package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims represents JWT claims for a phone-authenticated user.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
	Name   string `json:"name"`
}

// Manager handles JWT operations. Keys are generated per process; every
// restart invalidates previously issued tokens, which matches the
// single-device session model of the application.
type Manager struct {
	privateKey     *rsa.PrivateKey
	publicKey      *rsa.PublicKey
	accessDuration time.Duration
	issuer         string

	// In-memory revocation store, keyed by user ID.
	revokedUsers map[string]time.Time
	mu           sync.RWMutex
}

// NewManager creates a new JWT manager.
func NewManager(accessDuration time.Duration, issuer string) (*Manager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	return &Manager{
		privateKey:     privateKey,
		publicKey:      &privateKey.PublicKey,
		accessDuration: accessDuration,
		issuer:         issuer,
		revokedUsers:   make(map[string]time.Time),
	}, nil
}

// GenerateToken creates an access token for the given user.
func (m *Manager) GenerateToken(userID, phone, name string) (token string, expiresAt int64, err error) {
	now := time.Now()
	exp := now.Add(m.accessDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
		Phone:  phone,
		Name:   name,
	}

	// Re-issuing a token un-revokes the user.
	m.mu.Lock()
	delete(m.revokedUsers, userID)
	m.mu.Unlock()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", 0, err
	}

	return signed, exp.Unix(), nil
}

// ValidateToken validates a token and returns its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return m.publicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	m.mu.RLock()
	_, revoked := m.revokedUsers[claims.UserID]
	m.mu.RUnlock()
	if revoked {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RevokeUserTokens revokes all tokens for a user. Called on logout.
func (m *Manager) RevokeUserTokens(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedUsers[userID] = time.Now().Add(m.accessDuration)
}

// CleanupExpiredRevocations removes revocation entries whose tokens have
// all expired anyway.
func (m *Manager) CleanupExpiredRevocations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for userID, expiry := range m.revokedUsers {
		if now.After(expiry) {
			delete(m.revokedUsers, userID)
		}
	}
}
