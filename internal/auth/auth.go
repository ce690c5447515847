// Package auth handles user registration, login, sessions and access-token
// identification against the protected store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/metrics"
	"github.com/sipico/practice-server/internal/middleware"
	"github.com/sipico/practice-server/internal/storage"
)

// Protected collections.
const (
	UsersCollection    = "users"
	SessionsCollection = "sessions"
)

// Fields written by the auth service.
const (
	FieldPassword       = "password"
	FieldHashedPassword = "hashedPassword"
	FieldAccessToken    = "accessToken"
	FieldUserID         = "userId"
)

// DefaultIdentity is the user field used as the login name.
const DefaultIdentity = "email"

// Client-facing messages.
const (
	msgMissingFields  = "Missing fields"
	msgBadCredentials = "Login or password don't match"
	msgNoSession      = "User session does not exist"
	msgInvalidToken   = "Invalid access token"
)

// Store is the subset of the protected store used by the service.
type Store interface {
	Get(collection, id string) (storage.Record, error)
	Add(collection, owner string, data storage.Record) (storage.Record, error)
	Set(collection, id string, data storage.Record) (storage.Record, error)
	Delete(collection, id string) (storage.Record, error)
	Query(collection string, match storage.Record) ([]storage.Record, error)
}

// Service implements register, login, logout and token identification.
type Service struct {
	store    Store
	identity string
	hasher   Hasher
	logger   *slog.Logger

	// registerMu serializes the identity check and the insert in Register.
	registerMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithIdentity sets the user field used as the login name.
func WithIdentity(field string) Option {
	return func(s *Service) {
		if field != "" {
			s.identity = field
		}
	}
}

// WithHasher sets the password hasher.
func WithHasher(h Hasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an auth service over the protected store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		identity: DefaultIdentity,
		hasher:   HMACHasher{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity returns the configured identity field.
func (s *Service) Identity() string {
	return s.identity
}

// Register creates a user and a session for it.
func (s *Service) Register(ctx context.Context, body storage.Record) (storage.Record, error) {
	identity, _ := body[s.identity].(string)
	password, _ := body[FieldPassword].(string)
	if identity == "" || password == "" {
		return nil, apperr.Request(msgMissingFields)
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	existing, err := s.query(UsersCollection, storage.Record{s.identity: identity})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		metrics.RecordAuthFailure("duplicate_identity")
		return nil, apperr.Conflict(fmt.Sprintf("A user with the same %s already exists", s.identity))
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	newUser := body.Clone()
	delete(newUser, FieldPassword)
	newUser[FieldHashedPassword] = hashed

	user, err := s.store.Add(UsersCollection, "", newUser)
	if err != nil {
		return nil, fmt.Errorf("add user: %w", err)
	}

	token, err := s.saveSession(user.ID())
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", user.ID(),
	)

	delete(user, FieldHashedPassword)
	user[FieldAccessToken] = token
	return user, nil
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, body storage.Record) (storage.Record, error) {
	identity, _ := body[s.identity].(string)
	password, _ := body[FieldPassword].(string)

	matches, err := s.query(UsersCollection, storage.Record{s.identity: identity})
	if err != nil {
		return nil, err
	}
	if identity == "" || len(matches) != 1 {
		metrics.RecordAuthFailure("bad_credentials")
		return nil, apperr.Credential(msgBadCredentials)
	}

	user := matches[0]
	hashed, _ := user[FieldHashedPassword].(string)
	if !s.hasher.Verify(password, hashed) {
		metrics.RecordAuthFailure("bad_credentials")
		return nil, apperr.Credential(msgBadCredentials)
	}

	token, err := s.saveSession(user.ID())
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", user.ID(),
	)

	delete(user, FieldHashedPassword)
	user[FieldAccessToken] = token
	return user, nil
}

// Logout ends the session for the presented token, or the user's first
// session when the token does not match one.
func (s *Service) Logout(ctx context.Context, user storage.Record, token string) error {
	if user == nil {
		metrics.RecordAuthFailure("missing_session")
		return apperr.Credential(msgNoSession)
	}

	session, err := s.findSession(storage.Record{FieldAccessToken: token}, token)
	if err != nil {
		return err
	}
	if session == nil {
		session, err = s.findSession(storage.Record{FieldUserID: user.ID()}, "")
		if err != nil {
			return err
		}
	}
	if session == nil {
		return nil
	}

	if _, err := s.store.Delete(SessionsCollection, session.ID()); err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.Info("user logged out",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", user.ID(),
	)
	return nil
}

// Identify resolves an access token to its user.
func (s *Service) Identify(ctx context.Context, token string) (storage.Record, error) {
	session, err := s.findSession(storage.Record{FieldAccessToken: token}, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.Credential(msgInvalidToken)
	}

	userID, _ := session[FieldUserID].(string)
	user, err := s.store.Get(UsersCollection, userID)
	if err != nil {
		if errors.Is(err, storage.ErrCollectionNotFound) || errors.Is(err, storage.ErrRecordNotFound) {
			s.logger.Warn("session refers to a missing user",
				"request_id", middleware.GetRequestID(ctx),
				"user_id", userID,
			)
			return nil, apperr.Credential(msgInvalidToken)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// saveSession stores a session for the user and returns its access token.
func (s *Service) saveSession(userID string) (string, error) {
	session, err := s.store.Add(SessionsCollection, "", storage.Record{FieldUserID: userID})
	if err != nil {
		return "", fmt.Errorf("add session: %w", err)
	}

	token := Sign(session.ID())
	session[FieldAccessToken] = token
	if _, err := s.store.Set(SessionsCollection, session.ID(), session); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}
	return token, nil
}

// findSession returns the first session matching match. When exact is not
// empty the session's token must equal it byte for byte.
func (s *Service) findSession(match storage.Record, exact string) (storage.Record, error) {
	sessions, err := s.query(SessionsCollection, match)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if exact == "" || session[FieldAccessToken] == exact {
			return session, nil
		}
	}
	return nil, nil
}

// query treats a missing collection as empty.
func (s *Service) query(collection string, match storage.Record) ([]storage.Record, error) {
	out, err := s.store.Query(collection, match)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return out, nil
}
