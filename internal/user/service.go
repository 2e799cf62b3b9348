package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	"github.com/frahmantamala/rbac-admin/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/core/events"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, u *userDatamodel.User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter Filter, page pagination.Request) ([]*userDatamodel.User, int64, error)
	LoadAccess(ctx context.Context, userIDs []int64) (map[int64]Access, error)
}

type Service struct {
	repo       RepositoryAPI
	logger     *slog.Logger
	publisher  events.Publisher
	bcryptCost int
	timeout    time.Duration
}

type Option func(*Service)

func WithBCryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func NewService(repo RepositoryAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, dto CreateUserDTO) (*User, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	dto.Name = strings.TrimSpace(dto.Name)
	dto.Email = normalizeEmail(dto.Email)
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	taken, err := s.repo.EmailTaken(ctx, dto.Email, 0)
	if err != nil {
		s.logger.Error("failed to check email uniqueness", "error", err)
		return nil, internal.NewStoreError("Failed to create user", err)
	}
	if taken {
		return nil, validation.Unique("email")
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("Failed to hash password", err)
	}

	dm := &userDatamodel.User{
		Name:         dto.Name,
		Email:        dto.Email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, dm); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, validation.Unique("email")
		}
		s.logger.Error("failed to create user", "email", dto.Email, "error", err)
		return nil, internal.NewStoreError("Failed to create user", err)
	}

	s.logger.Info("user created", "user_id", dm.ID)
	return FromDataModel(dm), nil
}

func (s *Service) UpdateUser(ctx context.Context, userID int64, dto UpdateUserDTO) (*User, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	dto = dto.withoutBlanks()
	if dto.Email != nil {
		e := normalizeEmail(*dto.Email)
		dto.Email = &e
	}
	builder := validation.NewBuilder().Merge(validation.Struct(dto))
	if filled(dto.Password) {
		if !filled(dto.CurrentPassword) {
			builder.Add("current_password", "The current password field is required when password is present.", internal.ErrCodeRequired)
		}
		if dto.PasswordConfirmation == nil || *dto.PasswordConfirmation != *dto.Password {
			builder.Add("password", "The password confirmation does not match.", internal.ErrCodeConfirmation)
		}
	}
	if filled(dto.Email) && *dto.Email != existing.Email {
		taken, err := s.repo.EmailTaken(ctx, *dto.Email, userID)
		if err != nil {
			return nil, internal.NewStoreError("Failed to update user", err)
		}
		if taken {
			builder.Merge(validation.Unique("email"))
		}
	}
	if verr := builder.Validate(); verr != nil {
		return nil, verr
	}

	if filled(dto.Password) {
		if !VerifyPassword(existing.PasswordHash, *dto.CurrentPassword) {
			s.logger.Warn("password change rejected", "user_id", userID)
			return nil, internal.ErrCurrentPassword
		}
		hash, err := HashPassword(*dto.Password, s.bcryptCost)
		if err != nil {
			return nil, internal.NewInternalError("Failed to hash password", err)
		}
		existing.PasswordHash = hash
	}
	if filled(dto.Name) {
		existing.Name = strings.TrimSpace(*dto.Name)
	}
	if filled(dto.Email) {
		existing.Email = *dto.Email
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, internal.ErrUserNotFound
		case errors.Is(err, ErrDuplicateEmail):
			return nil, validation.Unique("email")
		}
		s.logger.Error("failed to update user", "user_id", userID, "error", err)
		return nil, internal.NewStoreError("Failed to update user", err)
	}

	s.logger.Info("user updated", "user_id", userID)
	return s.withAccess(ctx, existing)
}

// DeleteUser removes the user and every role and permission assignment it holds.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrUserNotFound
		}
		s.logger.Error("failed to delete user", "user_id", userID, "error", err)
		return internal.NewStoreError("Failed to delete user", err)
	}

	s.logger.Info("user deleted", "user_id", userID)
	s.publish(ctx, events.NewEntityChangedEvent(events.EventTypeUserDeleted, userID, "", actorID(ctx)))
	return nil
}

func (s *Service) ListUsers(ctx context.Context, filter Filter, page pagination.Request) (pagination.Page[*User], error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter.Role = strings.TrimSpace(filter.Role)
	filter.Permission = strings.TrimSpace(filter.Permission)
	filter.Search = strings.TrimSpace(filter.Search)

	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return pagination.Page[*User]{}, internal.NewStoreError("Failed to fetch users", err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	access, err := s.repo.LoadAccess(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load user access", "error", err)
		return pagination.Page[*User]{}, internal.NewStoreError("Failed to fetch users", err)
	}

	users := make([]*User, len(rows))
	for i, row := range rows {
		users[i] = FromDataModel(row).WithAccess(access[row.ID])
	}
	return pagination.NewPage(users, page, total), nil
}

// GetUser returns the user with role names and effective permissions.
func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	dm, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withAccess(ctx, dm)
}

// FindByEmail looks a user up by address. Missing users return ErrUserNotFound.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	dm, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, internal.NewStoreError("Failed to fetch user", err)
	}
	return s.withAccess(ctx, dm)
}

// Authenticate verifies an email and password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	dm, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrInvalidCredentials
		}
		return nil, internal.NewStoreError("Failed to authenticate", err)
	}
	if !VerifyPassword(dm.PasswordHash, password) {
		return nil, internal.ErrInvalidCredentials
	}
	return s.withAccess(ctx, dm)
}

func (s *Service) getByID(ctx context.Context, userID int64) (*userDatamodel.User, error) {
	dm, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		s.logger.Error("failed to get user", "user_id", userID, "error", err)
		return nil, internal.NewStoreError("Failed to load user relations", err)
	}
	return dm, nil
}

func (s *Service) withAccess(ctx context.Context, dm *userDatamodel.User) (*User, error) {
	access, err := s.repo.LoadAccess(ctx, []int64{dm.ID})
	if err != nil {
		s.logger.Error("failed to load user access", "user_id", dm.ID, "error", err)
		return nil, internal.NewStoreError("Failed to load user relations", err)
	}
	return FromDataModel(dm).WithAccess(access[dm.ID]), nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func actorID(ctx context.Context) int64 {
	if p, ok := internal.PrincipalFromContext(ctx); ok {
		return p.ID
	}
	return 0
}
