package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/auditlog"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

const entityUser = "user"

// TokenIssuer signs session tokens for an authenticated actor.
type TokenIssuer interface {
	Issue(a auth.Actor) (string, time.Time, error)
}

type Service struct {
	tx       db.TxRunner
	users    UserRepository
	audit    auditlog.Recorder
	sessions TokenIssuer
}

func NewService(tx db.TxRunner, users UserRepository, audit auditlog.Recorder, sessions TokenIssuer) *Service {
	return &Service{tx: tx, users: users, audit: audit, sessions: sessions}
}

func (s *Service) CreateUser(ctx context.Context, actor auth.Actor, in CreateUserInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, apperr.Field("username", "is required")
	}
	if !in.Role.Valid() {
		return nil, apperr.Field("role", "must be one of: MANAGER DENTIST")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Field("password", err.Error())
	}
	u := &User{
		Username:     in.Username,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         in.Role,
		PasswordHash: hash,
		Active:       true,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if existing, err := s.users.GetByUsername(ctx, u.Username); err == nil && existing != nil {
			return apperr.Rule("username %q is already taken", u.Username)
		} else if err != nil && !apperr.IsNotFound(err) {
			return err
		}
		if err := s.users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityUser, EntityID: u.ID, After: u.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, f, limit, offset)
}

// ListDentists returns every active dentist, for booking pickers.
func (s *Service) ListDentists(ctx context.Context) ([]*User, error) {
	active := true
	items, _, err := s.users.List(ctx, UserFilter{Role: auth.RoleDentist, Active: &active}, 1000, 0)
	return items, err
}

func (s *Service) UpdateUser(ctx context.Context, actor auth.Actor, id uuid.UUID, in UpdateUserInput) (*User, error) {
	var u *User
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if u, err = s.users.GetByID(ctx, id); err != nil {
			return err
		}
		before := u.snapshot()
		if in.FullName != nil {
			u.FullName = strings.TrimSpace(*in.FullName)
		}
		if in.Role != nil {
			if !in.Role.Valid() {
				return apperr.Field("role", "must be one of: MANAGER DENTIST")
			}
			u.Role = *in.Role
		}
		if in.Active != nil {
			u.Active = *in.Active
		}
		if u.ID == actor.UserID && (!u.Active || u.Role != actor.Role) {
			return apperr.Rule("you cannot deactivate or change the role of your own account")
		}
		if err := s.users.Update(ctx, u); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionUpdate, EntityType: entityUser, EntityID: u.ID, Before: before, After: u.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ResetPassword(ctx context.Context, actor auth.Actor, id uuid.UUID, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Field("password", err.Error())
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
			return fmt.Errorf("reset password: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionPasswordReset, EntityType: entityUser, EntityID: u.ID,
		})
	})
}

var errBadCredentials = apperr.Unauthorized("invalid username or password")

// Login verifies credentials and issues a session token. Unknown users,
// wrong passwords and inactive accounts all fail the same way.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if apperr.IsNotFound(err) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, in.Password)
	if err != nil || !ok || !u.Active {
		return nil, errBadCredentials
	}
	token, exp, err := s.sessions.Issue(u.Actor())
	if err != nil {
		return nil, err
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.audit.Record(ctx, u.Actor(), auditlog.Entry{
			Action: auditlog.ActionLogin, EntityType: entityUser, EntityID: u.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// liveUser loads id and refuses accounts that were removed or deactivated.
func (s *Service) liveUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.Unauthorized("session user no longer exists")
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, apperr.Unauthorized("account is inactive")
	}
	return u, nil
}

// ResolveActor returns the session actor with the user's current role.
func (s *Service) ResolveActor(ctx context.Context, id uuid.UUID) (auth.Actor, error) {
	u, err := s.liveUser(ctx, id)
	if err != nil {
		return auth.Actor{}, err
	}
	return u.Actor(), nil
}

func (s *Service) Me(ctx context.Context, actor auth.Actor) (*Me, error) {
	u, err := s.liveUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &Me{User: u, Permissions: auth.PermissionsFor(u.Role)}, nil
}

// ActiveDentist loads id and checks that it is an active dentist. With lock
// set the row stays locked until the caller's transaction ends.
func (s *Service) ActiveDentist(ctx context.Context, id uuid.UUID, lock bool) (*User, error) {
	get := s.users.GetByID
	if lock {
		get = s.users.GetByIDForUpdate
	}
	u, err := get(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("dentist")
	}
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleDentist {
		return nil, apperr.Rule("user %s is not a dentist", u.Username)
	}
	if !u.Active {
		return nil, apperr.Rule("dentist %s is inactive", u.Username)
	}
	return u, nil
}
