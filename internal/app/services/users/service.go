package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

var (
	ErrInvalidProfile = errors.New("invalid user profile")
	ErrInvalidRole    = errors.New("invalid user role")
)

// ProfileUpdate carries optional profile changes. Nil fields are left as is.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Service manages user profiles. Balances are owned by the points ledger.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Register creates the profile for a gateway identity. Registering an id that
// already exists returns the stored user unchanged.
func (s *Service) Register(ctx context.Context, id, name, email, phone string) (user.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return user.User{}, fmt.Errorf("%w: id is required", ErrInvalidProfile)
	}
	if existing, err := s.store.GetUser(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}

	u := user.User{ID: id, Name: strings.TrimSpace(name), Email: normalizeEmail(email), Phone: strings.TrimSpace(phone), Role: user.RoleUser}
	if err := validateProfile(u); err != nil {
		return user.User{}, err
	}
	created, err := s.store.CreateUser(ctx, u)
	if errors.Is(err, storage.ErrConflict) {
		// Lost to a concurrent registration of the same id. Email clashes fall through.
		if existing, getErr := s.store.GetUser(ctx, id); getErr == nil {
			return existing, nil
		}
	}
	if err != nil {
		return user.User{}, err
	}
	s.log.Infof("user %s registered", created.ID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		u.Email = normalizeEmail(*upd.Email)
	}
	if upd.Phone != nil {
		u.Phone = strings.TrimSpace(*upd.Phone)
	}
	if err := validateProfile(u); err != nil {
		return user.User{}, err
	}
	return s.store.UpdateUser(ctx, u)
}

func (s *Service) List(ctx context.Context, req pagination.Request) (pagination.Page[user.User], error) {
	return s.store.ListUsers(ctx, req)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Infof("user %s deleted", id)
	return nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, id string, role user.Role) (user.User, error) {
	if !role.Valid() {
		return user.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Role = role
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.Infof("user %s role set to %s", id, role)
	return updated, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateProfile(u user.User) error {
	if u.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if u.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidProfile)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: email %q is malformed", ErrInvalidProfile, u.Email)
	}
	return nil
}
