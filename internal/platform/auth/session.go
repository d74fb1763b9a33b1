package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

const issuer = "clinic"

// Claims is the session token payload.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for a and its expiry.
func (s *Sessions) Issue(a Actor) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   a.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Username: a.Username,
		Role:     a.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, exp, nil
}

// Parse verifies token and returns the actor it was issued for.
func (s *Sessions) Parse(token string) (Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Actor{}, fmt.Errorf("invalid session token: %w", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, fmt.Errorf("invalid session subject: %w", err)
	}
	if !claims.Role.Valid() {
		return Actor{}, fmt.Errorf("invalid session role %q", claims.Role)
	}
	return Actor{UserID: id, Username: claims.Username, Role: claims.Role}, nil
}

// ActorResolver loads the current state of a session's user. It returns an
// Unauthorized or NotFound error when the account is gone or inactive.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id uuid.UUID) (Actor, error)
}

// SessionMiddleware resolves the bearer token into an Actor on the request
// context. The token only identifies the user: role and active flag come
// from users, so a demotion or deactivation applies to tokens already
// issued. Requests without a valid token or live account continue
// anonymously; the permission middleware turns that into 401 where a
// session is needed.
func SessionMiddleware(s *Sessions, users ActorResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				return next(c)
			}
			claimed, err := s.Parse(token)
			if err != nil {
				return next(c)
			}
			actor, err := users.ResolveActor(c.Request().Context(), claimed.UserID)
			switch apperr.KindOf(err) {
			case apperr.KindUnauthorized, apperr.KindNotFound:
				return next(c)
			}
			if err != nil {
				return fmt.Errorf("resolve session user: %w", err)
			}
			c.Set("actor_id", actor.UserID.String())
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))
			return next(c)
		}
	}
}
