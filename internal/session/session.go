package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spigell/rozgar/internal/jobs"
)

const DefaultTTL = 720 * time.Hour

var ErrInvalidToken = errors.New("invalid or expired session token")

// Session is the caller identity handed to every user scoped operation.
type Session struct {
	UserID    string    `json:"userId"`
	Role      jobs.Role `json:"role"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) IsWorker() bool {
	return s != nil && s.Role == jobs.RoleWorker
}

func (s *Session) IsEmployer() bool {
	return s != nil && s.Role == jobs.RoleEmployer
}

// Require returns ErrForbidden unless the session has the given role.
func (s *Session) Require(role jobs.Role) error {
	if s == nil || s.Role != role {
		return fmt.Errorf("%w: %s only", jobs.ErrForbidden, strings.ToLower(string(role)))
	}
	return nil
}

type Claims struct {
	UserID string    `json:"userId"`
	Role   jobs.Role `json:"role"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (m *Manager) Issue(user *jobs.User) (string, *Session, error) {
	now := m.now().UTC().Truncate(time.Second)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Phone:  user.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, claimsSession(&claims), nil
}

func (m *Manager) Parse(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	if _, err := jobs.ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsSession(claims), nil
}

func claimsSession(c *Claims) *Session {
	s := &Session{UserID: c.UserID, Role: c.Role, Name: c.Name, Phone: c.Phone}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}
