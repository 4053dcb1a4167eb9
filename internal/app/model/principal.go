package model

import "time"

// Principal is an identity issued by the identity provider
type Principal struct {
	ID          string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	// ProviderToken is the hosted provider's own token, needed for profile updates
	ProviderToken string `json:"-"`
}

// Session is a signed-in principal as tracked by the session manager
type Session struct {
	ID            string    `json:"id"`
	PrincipalID   string    `json:"principal_id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	ProviderToken string    `json:"provider_token,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (s *Session) Principal() *Principal {
	return &Principal{
		ID:            s.PrincipalID,
		Email:         s.Email,
		DisplayName:   s.DisplayName,
		ProviderToken: s.ProviderToken,
	}
}

// Credential is a locally stored email/password pair
type Credential struct {
	ID           string
	CreatedAt    time.Time
	Email        string
	DisplayName  string
	PasswordHash string
}

func (c *Credential) Principal() *Principal {
	return &Principal{
		ID:          c.ID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
	}
}
