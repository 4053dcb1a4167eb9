package idp

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"
)

// Stub is an in-memory stand-in for the hosted identity provider, for development and tests
type Stub struct {
	mu         sync.RWMutex
	apiKey     string
	bcryptCost int
	accounts   map[string]*stubAccount // by email
	tokens     map[string]string       // id token -> email
}

type stubAccount struct {
	localID      string
	email        string
	displayName  string
	passwordHash []byte
}

func NewStub(apiKey string) *Stub {
	return &Stub{
		apiKey:     apiKey,
		bcryptCost: bcrypt.MinCost,
		accounts:   make(map[string]*stubAccount),
		tokens:     make(map[string]string),
	}
}

func (s *Stub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.checkKey)
	r.Post("/v1/accounts:signUp", s.signUp)
	r.Post("/v1/accounts:signInWithPassword", s.signIn)
	r.Post("/v1/accounts:update", s.update)
	return r
}

func (s *Stub) checkKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.URL.Query().Get("key") != s.apiKey {
			writeStubError(w, http.StatusBadRequest, MessageInvalidAPIKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Stub) signUp(w http.ResponseWriter, r *http.Request) {
	in := SignUpRequest{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeStubError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case !strings.Contains(email, "@"):
		writeStubError(w, http.StatusBadRequest, MessageInvalidEmail)
		return
	case in.Password == "":
		writeStubError(w, http.StatusBadRequest, MessageMissingPassword)
		return
	case len(in.Password) < 6:
		writeStubError(w, http.StatusBadRequest, MessageWeakPassword)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		writeStubError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; ok {
		writeStubError(w, http.StatusBadRequest, MessageEmailExists)
		return
	}

	a := &stubAccount{
		localID:      uuid.New().String(),
		email:        email,
		passwordHash: hash,
	}
	s.accounts[email] = a

	writeStubJSON(w, SignUpResponse{
		LocalID: a.localID,
		Email:   a.email,
		IDToken: s.issueToken(email),
	})
}

func (s *Stub) signIn(w http.ResponseWriter, r *http.Request) {
	in := SignInRequest{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeStubError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[email]
	if !ok || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(in.Password)) != nil {
		writeStubError(w, http.StatusBadRequest, MessageInvalidCredentials)
		return
	}

	writeStubJSON(w, SignInResponse{
		LocalID:     a.localID,
		Email:       a.email,
		DisplayName: a.displayName,
		IDToken:     s.issueToken(email),
		Registered:  true,
	})
}

func (s *Stub) update(w http.ResponseWriter, r *http.Request) {
	in := UpdateRequest{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeStubError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.tokens[in.IDToken]
	if !ok {
		writeStubError(w, http.StatusBadRequest, MessageInvalidIDToken)
		return
	}

	a := s.accounts[email]
	a.displayName = in.DisplayName

	writeStubJSON(w, UpdateResponse{
		LocalID:     a.localID,
		Email:       a.email,
		DisplayName: a.displayName,
	})
}

// issueToken must be called with the lock held
func (s *Stub) issueToken(email string) string {
	token := xid.New().String()
	s.tokens[token] = email
	return token
}

func writeStubJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeStubError(w http.ResponseWriter, code int, message string) {
	e := errorResponse{}
	e.Error.Code = code
	e.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(e)
}
