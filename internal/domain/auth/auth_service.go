// Package auth authenticates the couple's two members. Credentials are
// fixed in configuration rather than stored in the database; a successful
// login issues both a browser session cookie and a JWT for API clients.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/doubloon-app/doubloon/internal/domain/common"
)

const (
	sessionName      = "doubloon_session"
	sessionMemberKey = "member"
)

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	Member               string `json:"mbr"`
	jwt.RegisteredClaims        // Embed standard claims (ExpiresAt, IssuedAt, Subject, etc.).
}

// Service verifies member credentials and manages sessions and tokens.
type Service struct {
	logger    *slog.Logger
	members   map[string][]byte // member name -> bcrypt hash
	jwtSecret []byte
	tokenTTL  time.Duration
	store     *sessions.CookieStore
}

// NewService hashes the configured plaintext secrets at startup so only
// bcrypt digests stay in memory.
func NewService(credentials map[string]string, jwtSecret, sessionSecret string, tokenTTL time.Duration, logger *slog.Logger) (*Service, error) {
	if len(credentials) == 0 {
		return nil, fmt.Errorf("no member credentials configured")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	members := make(map[string][]byte, len(credentials))
	for name, secret := range credentials {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash credentials for %q: %w", name, err)
		}
		members[strings.ToLower(name)] = hash
	}

	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Service{
		logger:    logger,
		members:   members,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		store:     store,
	}, nil
}

// Members lists the configured member names.
func (s *Service) Members() []string {
	names := make([]string, 0, len(s.members))
	for name := range s.members {
		names = append(names, name)
	}
	return names
}

// Login verifies a member's secret and returns a signed JWT.
func (s *Service) Login(name, secret string) (string, error) {
	hash, ok := s.members[strings.ToLower(name)]
	if !ok {
		// Burn a comparison anyway so unknown names cost the same.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(secret))
		return "", common.ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return "", common.ErrUnauthenticated
	}

	now := time.Now()
	claims := &Claims{
		Member: strings.ToLower(name),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(name),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("member logged in", slog.String("member", strings.ToLower(name)))
	return token, nil
}

// ValidateToken parses a JWT and returns the member it was issued to.
func (s *Service) ValidateToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", common.ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Member == "" {
		return "", common.ErrUnauthenticated
	}

	return claims.Member, nil
}

// IssueSession writes the browser session cookie for a member.
func (s *Service) IssueSession(w http.ResponseWriter, r *http.Request, member string) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		// A stale or tampered cookie decodes to a fresh session.
		session, _ = s.store.New(r, sessionName)
	}
	session.Values[sessionMemberKey] = strings.ToLower(member)
	return session.Save(r, w)
}

// ClearSession expires the browser session cookie.
func (s *Service) ClearSession(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		session, _ = s.store.New(r, sessionName)
	}
	session.Options.MaxAge = -1
	delete(session.Values, sessionMemberKey)
	return session.Save(r, w)
}

// SessionMember returns the member bound to the request's session cookie.
func (s *Service) SessionMember(r *http.Request) (string, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	member, ok := session.Values[sessionMemberKey].(string)
	return member, ok && member != ""
}

// Authenticate resolves the member behind a request, preferring a Bearer
// token over the session cookie.
func (s *Service) Authenticate(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return "", common.ErrUnauthenticated
		}
		return s.ValidateToken(token)
	}
	if member, ok := s.SessionMember(r); ok {
		return member, nil
	}
	return "", common.ErrUnauthenticated
}
