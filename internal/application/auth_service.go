package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// CredentialStore exposes the account operations required by the auth service.
type CredentialStore interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	CountUsers(ctx context.Context) (int, error)
	GetUserCredentialsByLogin(ctx context.Context, login string) (UserCredentials, error)
	GetUser(ctx context.Context, id int64) (User, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// PasswordHasher derives the stored hash for a new password.
type PasswordHasher func(password string) (string, error)

// AuthService coordinates registration, login and session validation.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger

	registerMu sync.Mutex
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, idGenerator, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, nil, nil, idGenerator, tokenGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
// Nil hash and verify functions default to argon2id.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions SessionRepository, hash PasswordHasher, verify PasswordVerifier, idGenerator, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if hash == nil {
		hash = HashPassword
	}
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		hashPassword:   hash,
		verifyPassword: verify,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Register creates an account. The first account registered becomes an administrator.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	params.Username = strings.TrimSpace(params.Username)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.DisplayName = strings.TrimSpace(params.DisplayName)

	logger := s.loggerWith(ctx, "Register", "username", params.Username)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "registration failed", err)
			return
		}
		logger.With("user_id", user.ID, "is_admin", user.IsAdmin).InfoContext(ctx, "user registered")
	}()

	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	if hash, err = s.hashPassword(params.Password); err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	var count int
	if count, err = s.credentials.CountUsers(ctx); err != nil {
		return
	}

	now := s.now()
	displayName := params.DisplayName
	if displayName == "" {
		displayName = params.Username
	}
	user, err = s.credentials.CreateUser(ctx, User{
		Username:    params.Username,
		Email:       params.Email,
		DisplayName: displayName,
		IsAdmin:     count == 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, hash)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			vErr := &ValidationError{}
			vErr.add("username", "username or email is already registered")
			err = fmt.Errorf("%w: %w", ErrAlreadyExists, vErr)
			return
		}
		err = mapRepoError(err)
	}
	return
}

// Authenticate validates credentials and issues a new session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	login := strings.TrimSpace(params.Login)
	logger := s.loggerWith(ctx, "Authenticate", "login", login)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "authentication failed", err)
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if login == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByLogin(ctx, login)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	token := s.tokenGenerator()
	id := s.idGenerator()
	if id == "" {
		id = token
	}

	session := Session{
		ID:        id,
		UserID:    creds.User.ID,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if s.sessions != nil {
		var persisted Session
		persisted, err = s.sessions.CreateSession(ctx, session)
		if err != nil {
			return
		}
		session = persisted
	}

	result = AuthenticateResult{User: creds.User, Session: session}
	return
}

// RevokeSession invalidates an existing session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "RevokeSession")

	if _, err := s.sessions.RevokeSession(ctx, trimmed, s.now()); err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			logFailure(ctx, logger, "failed to revoke session", ErrInvalidCredentials)
			return ErrInvalidCredentials
		}
		logFailure(ctx, logger, "failed to revoke session", err)
		return err
	}

	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession verifies that the provided token corresponds to an active session and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "session validation failed", err)
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, trimmed)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	principal = Principal{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}
	return
}

// PruneExpiredSessions deletes sessions that expired or were revoked.
func (s *AuthService) PruneExpiredSessions(ctx context.Context) (removed int64, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "PruneExpiredSessions")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to prune sessions", err)
			return
		}
		logger.InfoContext(ctx, "sessions pruned", "removed", removed)
	}()

	removed, err = s.sessions.DeleteExpiredSessions(ctx, s.now())
	return
}
