package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/cache"
	dbm "github.com/gartstein/maintenance/internal/maintenance/db/models"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid login credentials")

// AccountStore is the slice of the Entity Store the authenticator needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, profile *models.Profile, cred *dbm.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*dbm.Credential, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type EventProducer interface {
	Produce(event events.Event)
}

// Session is a signed-in caller.
type Session struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
	Profile   *models.Profile
}

type SessionEventType string

const (
	SignedIn  SessionEventType = "signed_in"
	SignedOut SessionEventType = "signed_out"
)

// SessionEvent is delivered to subscribers on every session transition.
type SessionEvent struct {
	Type    SessionEventType
	Session *Session
}

type SignUpInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	FullName string `validate:"required"`
}

// Authenticator manages accounts and sessions.
type Authenticator struct {
	store    AccountStore
	tokens   cache.Store
	producer EventProducer
	logger   *zap.Logger
	validate *validator.Validate
	secret   string
	ttl      time.Duration

	mu          sync.Mutex
	subscribers map[int]chan SessionEvent
	nextSub     int
}

func NewAuthenticator(store AccountStore, tokens cache.Store, producer EventProducer, secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		store:       store,
		tokens:      tokens,
		producer:    producer,
		logger:      logger.Named("authenticator"),
		validate:    validator.New(),
		secret:      secret,
		ttl:         DefaultTokenTTL,
		subscribers: map[int]chan SessionEvent{},
	}
}

// SignUp creates a technician profile without a team and its credential.
func (a *Authenticator) SignUp(ctx context.Context, in SignUpInput) (*models.Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := a.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &models.Profile{
		ID:       uuid.New(),
		FullName: in.FullName,
		Email:    in.Email,
		Role:     models.RoleTechnician,
	}
	cred := &dbm.Credential{
		ProfileID:    profile.ID,
		Email:        in.Email,
		PasswordHash: string(hash),
	}
	if err := a.store.CreateAccount(ctx, profile, cred); err != nil {
		return nil, err
	}
	a.logger.Info("Account created", zap.String("profile_id", profile.ID.String()))
	return profile, nil
}

// SignIn checks the password and opens a session.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	cred, err := a.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := a.store.GetProfile(ctx, cred.ProfileID)
	if err != nil {
		return nil, err
	}

	token, tokenID, expiresAt, err := GenerateToken(profile.ID, profile.Email, a.secret, a.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	session := &Session{Token: token, TokenID: tokenID, ExpiresAt: expiresAt, Profile: profile}
	a.notify(SessionEvent{Type: SignedIn, Session: session})
	return session, nil
}

// CurrentSession resolves a token back into its session.
func (a *Authenticator) CurrentSession(ctx context.Context, token string) (*Session, error) {
	principal, expiresAt, err := a.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := a.IsRevoked(ctx, principal.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: session signed out", e.ErrAuthorization)
	}

	profile, err := a.store.GetProfile(ctx, principal.ProfileID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, TokenID: principal.TokenID, ExpiresAt: expiresAt, Profile: profile}, nil
}

// SignOut revokes the token until it would have expired anyway.
func (a *Authenticator) SignOut(ctx context.Context, token string) error {
	session, err := a.CurrentSession(ctx, token)
	if err != nil {
		return err
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := a.tokens.Set(ctx, cache.Key(cache.RevokedPrefix, session.TokenID), []byte("1"), ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	a.notify(SessionEvent{Type: SignedOut, Session: session})
	return nil
}

// IsRevoked implements RevocationChecker.
func (a *Authenticator) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := a.tokens.Get(ctx, cache.Key(cache.RevokedPrefix, tokenID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, cache.ErrMiss):
		return false, nil
	default:
		return false, err
	}
}

// Subscribe returns a stream of session transitions and a function that ends the subscription.
// Slow subscribers miss events rather than block sign-in.
func (a *Authenticator) Subscribe() (<-chan SessionEvent, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	ch := make(chan SessionEvent, 16)
	a.subscribers[id] = ch

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if sub, ok := a.subscribers[id]; ok {
			delete(a.subscribers, id)
			close(sub)
		}
	}
}

func (a *Authenticator) notify(ev SessionEvent) {
	a.mu.Lock()
	for _, ch := range a.subscribers {
		select {
		case ch <- ev:
		default:
			a.logger.Warn("Session subscriber full, dropping event", zap.String("event_type", string(ev.Type)))
		}
	}
	a.mu.Unlock()

	if a.producer == nil {
		return
	}
	eventType := events.SessionSignedIn
	if ev.Type == SignedOut {
		eventType = events.SessionSignedOut
	}
	a.producer.Produce(events.Event{
		Type:       eventType,
		EntityID:   ev.Session.Profile.ID,
		OccurredAt: time.Now().UTC(),
		Profile:    ev.Session.Profile,
	})
}

func (a *Authenticator) parse(token string) (Principal, time.Time, error) {
	claims, err := validateToken(token, a.secret)
	if err != nil {
		return Principal{}, time.Time{}, fmt.Errorf("%w: %v", e.ErrAuthorization, err)
	}
	principal, err := principalFromClaims(claims)
	if err != nil {
		return Principal{}, time.Time{}, fmt.Errorf("%w: %v", e.ErrAuthorization, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Principal{}, time.Time{}, fmt.Errorf("%w: token has no expiry", e.ErrAuthorization)
	}
	return principal, exp.Time, nil
}
