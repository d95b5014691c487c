package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"complaintdesk/config"
	"complaintdesk/core/directory"
	"complaintdesk/core/utils"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

type contextKey string

const SessionContextKey contextKey = "session"

// Session is the verified content of a bearer token.
type Session struct {
	ID        string           `json:"id"`
	Person    directory.Person `json:"person"`
	IssuedAt  time.Time        `json:"issued_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Directory is the lookup surface the provider authenticates against.
type Directory interface {
	Lookup(id string) (directory.Person, bool)
	LookupEmail(email string) (directory.Person, bool)
}

// Provider authenticates people from the directory and issues signed tokens.
type Provider struct {
	people Directory
	secret []byte
	issuer string
	ttl    time.Duration
	logger *utils.Logger
	now    func() time.Time
}

// dummyHash keeps the cost of a failed lookup close to a failed compare.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("complaintdesk"), bcrypt.MinCost)

func NewProvider(people Directory, cfg *config.AppConfig, logger *utils.Logger) (*Provider, error) {
	secret := []byte(strings.TrimSpace(cfg.Auth.JWTSecret))
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		logger.Warn("auth.jwt_secret is empty; tokens will not survive a restart")
	}
	return &Provider{
		people: people,
		secret: secret,
		issuer: cfg.Auth.Issuer,
		ttl:    cfg.EffectiveTokenTTL(),
		logger: logger,
		now:    utils.NowUTC,
	}, nil
}

func (p *Provider) Authenticate(_ context.Context, email, password string) (directory.Person, error) {
	person, ok := p.people.LookupEmail(email)
	if !ok || !person.HasCredential() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return directory.Person{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(person.CredentialHash(), []byte(password)); err != nil {
		return directory.Person{}, ErrInvalidCredentials
	}
	return person, nil
}

func (p *Provider) IssueToken(person directory.Person) (string, *Session, error) {
	now := p.now()
	sess := &Session{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Person:    person,
		IssuedAt:  now,
		ExpiresAt: now.Add(p.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(person.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   person.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, sess, nil
}

// Verify checks the signature, issuer and expiry of raw and resolves its
// subject against the directory.
func (p *Provider) Verify(raw string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	person, ok := p.people.Lookup(c.Subject)
	if !ok || string(person.Role) != c.Role {
		return nil, fmt.Errorf("%w: unknown subject %q", ErrInvalidToken, c.Subject)
	}
	sess := &Session{ID: c.ID, Person: person}
	if c.IssuedAt != nil {
		sess.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return sess, nil
}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, sess)
}

func SessionFrom(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*Session)
	return sess, ok && sess != nil
}

// CurrentActor returns the person behind the request, if any.
func CurrentActor(ctx context.Context) (directory.Person, bool) {
	sess, ok := SessionFrom(ctx)
	if !ok {
		return directory.Person{}, false
	}
	return sess.Person, true
}
