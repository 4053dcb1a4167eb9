package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/rs/xid"

	"portal/internal/app/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Creator interface {
	// Create a session for principal and return its signed token
	Create(ctx context.Context, p *model.Principal) (string, *model.Session, error)
}

type Reader interface {
	// Read a live session by token
	Read(ctx context.Context, token string) (*model.Session, error)
}

type Updater interface {
	// Update the principal snapshot kept in the session
	Update(ctx context.Context, token string, p *model.Principal) (*model.Session, error)
}

type Destroyer interface {
	// Destroy the session, reading it afterwards fails with ErrInvalidToken
	Destroy(ctx context.Context, token string) (*model.Session, error)
}

type Manager interface {
	Creator
	Reader
	Updater
	Destroyer
}

type Claims struct {
	jwt.StandardClaims
}

// signer issues and verifies session tokens, the token carries only the session id
type signer struct {
	issuer        string
	secretKey     []byte
	tokenLifetime time.Duration
}

func (s signer) newSession(p *model.Principal) (*model.Session, string, error) {
	now := time.Now()

	m := &model.Session{
		ID:            xid.New().String(),
		PrincipalID:   p.ID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		ProviderToken: p.ProviderToken,
		StartedAt:     now,
		ExpiresAt:     now.Add(s.tokenLifetime),
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        m.ID,
			Subject:   p.ID,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: m.ExpiresAt.Unix(),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	strToken, err := token.SignedString(s.secretKey)
	if err != nil {
		return nil, "", fmt.Errorf("jwt encode: %w", err)
	}

	return m, strToken, nil
}

// sessionID verifies the token and returns the session id it carries
func (s signer) sessionID(tokenString string) (string, error) {
	c := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Id == "" {
		return "", ErrInvalidToken
	}

	return c.Id, nil
}

func applyPrincipal(m *model.Session, p *model.Principal) {
	m.Email = p.Email
	m.DisplayName = p.DisplayName
	if p.ProviderToken != "" {
		m.ProviderToken = p.ProviderToken
	}
}
