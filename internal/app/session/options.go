package session

import "time"

type Option func(*signer)

// WithIssuer sets the iss claim of issued tokens
func WithIssuer(issuer string) Option {
	return func(s *signer) {
		s.issuer = issuer
	}
}

// WithTokenLifetime sets how long a session stays valid
func WithTokenLifetime(d time.Duration) Option {
	return func(s *signer) {
		if d > 0 {
			s.tokenLifetime = d
		}
	}
}

func newSigner(secretKey string, opts []Option) signer {
	var (
		defaultTokenLifeTime = time.Hour
		defaultIssuer        = "portal"
	)

	s := &signer{
		issuer:        defaultIssuer,
		secretKey:     []byte(secretKey),
		tokenLifetime: defaultTokenLifeTime,
	}

	for _, opt := range opts {
		opt(s)
	}

	return *s
}
