package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	"github.com/frahmantamala/rbac-admin/internal/core/common/validation"
	rbacDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/rbac"
	"github.com/frahmantamala/rbac-admin/internal/core/events"
	"github.com/frahmantamala/rbac-admin/internal/user"
)

type RepositoryAPI interface {
	ListRoles(ctx context.Context, page pagination.Request) ([]*rbacDatamodel.Role, int64, error)
	RolePermissionNames(ctx context.Context, roleIDs []int64) (map[int64][]string, error)
	GetRole(ctx context.Context, id int64) (*rbacDatamodel.Role, error)
	FindRoleByName(ctx context.Context, name string) (*rbacDatamodel.Role, error)
	CreateRole(ctx context.Context, role *rbacDatamodel.Role) error
	DeleteRole(ctx context.Context, id int64) error

	ListPermissions(ctx context.Context, page pagination.Request) ([]*rbacDatamodel.Permission, int64, error)
	FindPermissionByName(ctx context.Context, name string) (*rbacDatamodel.Permission, error)
	CreatePermission(ctx context.Context, perm *rbacDatamodel.Permission) error
	DeletePermission(ctx context.Context, id int64) error

	SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	SyncUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error
	AttachUserRole(ctx context.Context, userID, roleID int64) error

	UserExists(ctx context.Context, userID int64) (bool, error)
	UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// UserReader loads a user with roles and effective permissions.
type UserReader interface {
	GetUser(ctx context.Context, userID int64) (*user.User, error)
}

type Service struct {
	repo      RepositoryAPI
	users     UserReader
	logger    *slog.Logger
	publisher events.Publisher
	locks     *keyedMutex
	timeout   time.Duration
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func NewService(repo RepositoryAPI, users UserReader, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		users:  users,
		logger: logger,
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListRoles(ctx context.Context, page pagination.Request) (pagination.Page[*Role], error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, total, err := s.repo.ListRoles(ctx, page)
	if err != nil {
		s.logger.Error("failed to list roles", "error", err)
		return pagination.Page[*Role]{}, internal.NewStoreError("Failed to fetch roles", err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	names, err := s.repo.RolePermissionNames(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load role permissions", "error", err)
		return pagination.Page[*Role]{}, internal.NewStoreError("Failed to fetch roles", err)
	}

	roles := make([]*Role, len(rows))
	for i, row := range rows {
		roles[i] = RoleFromDataModel(row, names[row.ID])
	}
	return pagination.NewPage(roles, page, total), nil
}

func (s *Service) CreateRole(ctx context.Context, dto CreateRoleDTO) (*Role, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	dto.Name = strings.TrimSpace(dto.Name)
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	if _, err := s.repo.FindRoleByName(ctx, dto.Name); err == nil {
		return nil, validation.Unique("name")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, internal.NewStoreError("Failed to create role", err)
	}

	row := &rbacDatamodel.Role{Name: dto.Name, GuardName: rbacDatamodel.DefaultGuard}
	if err := s.repo.CreateRole(ctx, row); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, validation.Unique("name")
		}
		s.logger.Error("failed to create role", "name", dto.Name, "error", err)
		return nil, internal.NewStoreError("Failed to create role", err)
	}

	s.logger.Info("role created", "role_id", row.ID, "name", row.Name)
	s.publish(ctx, events.NewEntityChangedEvent(events.EventTypeRoleCreated, row.ID, row.Name, actorID(ctx)))
	return RoleFromDataModel(row, nil), nil
}

// DeleteRole removes the role and every assignment that references it.
func (s *Service) DeleteRole(ctx context.Context, roleID int64) error {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock := s.locks.Lock(lockKey(RelationRolePermissions, roleID))
	defer unlock()

	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrRoleNotFound
		}
		s.logger.Error("failed to delete role", "role_id", roleID, "error", err)
		return internal.NewStoreError("Failed to delete role", err)
	}

	s.logger.Info("role deleted", "role_id", roleID)
	s.publish(ctx, events.NewEntityChangedEvent(events.EventTypeRoleDeleted, roleID, "", actorID(ctx)))
	return nil
}

func (s *Service) ListPermissions(ctx context.Context, page pagination.Request) (pagination.Page[*Permission], error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, total, err := s.repo.ListPermissions(ctx, page)
	if err != nil {
		s.logger.Error("failed to list permissions", "error", err)
		return pagination.Page[*Permission]{}, internal.NewStoreError("Failed to fetch permissions", err)
	}

	perms := make([]*Permission, len(rows))
	for i, row := range rows {
		perms[i] = PermissionFromDataModel(row)
	}
	return pagination.NewPage(perms, page, total), nil
}

func (s *Service) CreatePermission(ctx context.Context, dto CreatePermissionDTO) (*Permission, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	dto.Name = strings.TrimSpace(dto.Name)
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	if _, err := s.repo.FindPermissionByName(ctx, dto.Name); err == nil {
		return nil, validation.Unique("name")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, internal.NewStoreError("Failed to create permission", err)
	}

	row := &rbacDatamodel.Permission{Name: dto.Name, GuardName: rbacDatamodel.DefaultGuard}
	if err := s.repo.CreatePermission(ctx, row); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, validation.Unique("name")
		}
		s.logger.Error("failed to create permission", "name", dto.Name, "error", err)
		return nil, internal.NewStoreError("Failed to create permission", err)
	}

	s.logger.Info("permission created", "permission_id", row.ID, "name", row.Name)
	s.publish(ctx, events.NewEntityChangedEvent(events.EventTypePermissionCreated, row.ID, row.Name, actorID(ctx)))
	return PermissionFromDataModel(row), nil
}

// DeletePermission removes the permission and every grant of it. Syncs that
// still name the permission fail their id check inside the sync transaction.
func (s *Service) DeletePermission(ctx context.Context, permissionID int64) error {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock := s.locks.Lock(lockKey(lockPermissions, permissionID))
	defer unlock()

	if err := s.repo.DeletePermission(ctx, permissionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrPermissionNotFound
		}
		s.logger.Error("failed to delete permission", "permission_id", permissionID, "error", err)
		return internal.NewStoreError("Failed to delete permission", err)
	}

	s.logger.Info("permission deleted", "permission_id", permissionID)
	s.publish(ctx, events.NewEntityChangedEvent(events.EventTypePermissionDeleted, permissionID, "", actorID(ctx)))
	return nil
}

// AssignPermissionsToRole replaces the role's permission set with
// permissionIDs. An empty list clears it.
func (s *Service) AssignPermissionsToRole(ctx context.Context, roleID int64, permissionIDs []int64) (*Role, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids := uniqueIDs(permissionIDs)
	err := s.sync(ctx, RelationRolePermissions, roleID, ids, internal.ErrRoleNotFound, s.repo.SyncRolePermissions)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, internal.NewStoreError("Failed to assign permissions to role", err)
	}
	names, err := s.repo.RolePermissionNames(ctx, []int64{roleID})
	if err != nil {
		return nil, internal.NewStoreError("Failed to assign permissions to role", err)
	}

	s.publish(ctx, events.NewAccessSyncedEvent(events.EventTypeRolePermissionsSynced, RelationRolePermissions, roleID, ids, actorID(ctx)))
	return RoleFromDataModel(row, names[roleID]), nil
}

// AssignRolesToUser replaces the user's role set. At least one valid role
// is required.
func (s *Service) AssignRolesToUser(ctx context.Context, userID int64, roleIDs []int64) (*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids := uniqueIDs(roleIDs)
	if len(ids) == 0 {
		if err := s.requireUser(ctx, userID); err != nil {
			return nil, err
		}
		syncOperations.WithLabelValues(RelationUserRoles, resultValidation).Inc()
		return nil, internal.ErrNoValidRoles
	}

	if err := s.sync(ctx, RelationUserRoles, userID, ids, internal.ErrUserNotFound, s.repo.SyncUserRoles); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewAccessSyncedEvent(events.EventTypeUserRolesSynced, RelationUserRoles, userID, ids, actorID(ctx)))
	return s.users.GetUser(ctx, userID)
}

// AssignPermissionsToUser replaces the user's direct grants. Role grants are
// untouched; an empty list clears every direct grant.
func (s *Service) AssignPermissionsToUser(ctx context.Context, userID int64, permissionIDs []int64) (*user.User, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids := uniqueIDs(permissionIDs)
	if err := s.sync(ctx, RelationUserPermissions, userID, ids, internal.ErrUserNotFound, s.repo.SyncUserPermissions); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewAccessSyncedEvent(events.EventTypeUserPermissionsSynced, RelationUserPermissions, userID, ids, actorID(ctx)))
	return s.users.GetUser(ctx, userID)
}

// UserHasPermission reports whether permission is granted directly or via
// any assigned role.
func (s *Service) UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.repo.UserHasPermission(ctx, userID, permission)
	if err != nil {
		permissionChecks.WithLabelValues(resultError).Inc()
		return false, internal.NewStoreError("Failed to check permission", err)
	}
	if ok {
		permissionChecks.WithLabelValues("granted").Inc()
	} else {
		permissionChecks.WithLabelValues("denied").Inc()
	}
	return ok, nil
}

func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	names, err := s.repo.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, internal.NewStoreError("Failed to load permissions", err)
	}
	return names, nil
}

// EnsureRole returns the role named name, creating it when absent.
func (s *Service) EnsureRole(ctx context.Context, name string) (*Role, bool, error) {
	existing, err := s.repo.FindRoleByName(ctx, strings.TrimSpace(name))
	if err == nil {
		return RoleFromDataModel(existing, nil), false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, internal.NewStoreError("Failed to load role", err)
	}
	role, err := s.CreateRole(ctx, CreateRoleDTO{Name: name})
	if err != nil {
		return nil, false, err
	}
	return role, true, nil
}

// EnsurePermission returns the permission named name, creating it when absent.
func (s *Service) EnsurePermission(ctx context.Context, name string) (*Permission, bool, error) {
	existing, err := s.repo.FindPermissionByName(ctx, strings.TrimSpace(name))
	if err == nil {
		return PermissionFromDataModel(existing), false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, internal.NewStoreError("Failed to load permission", err)
	}
	perm, err := s.CreatePermission(ctx, CreatePermissionDTO{Name: name})
	if err != nil {
		return nil, false, err
	}
	return perm, true, nil
}

// GrantRole attaches one role without touching the user's other roles.
func (s *Service) GrantRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock := s.locks.Lock(lockKey(RelationUserRoles, userID))
	defer unlock()

	if err := s.repo.AttachUserRole(ctx, userID, roleID); err != nil {
		return internal.NewStoreError("Failed to assign role to user", err)
	}
	return nil
}

type syncFunc func(ctx context.Context, ownerID int64, memberIDs []int64) error

// sync runs one sync-replace under the per-owner lock and maps store
// errors onto the API taxonomy.
func (s *Service) sync(ctx context.Context, relation string, ownerID int64, ids []int64, notFound *internal.AppError, fn syncFunc) error {
	unlock := s.locks.Lock(lockKey(relation, ownerID))
	defer unlock()

	start := time.Now()
	err := fn(ctx, ownerID, ids)
	syncDuration.WithLabelValues(relation).Observe(time.Since(start).Seconds())

	var invalid *InvalidIDsError
	switch {
	case err == nil:
		syncOperations.WithLabelValues(relation, resultSuccess).Inc()
		s.logger.Info("relation synced", "relation", relation, "owner_id", ownerID, "members", len(ids))
		return nil
	case errors.Is(err, ErrNotFound):
		syncOperations.WithLabelValues(relation, resultNotFound).Inc()
		return notFound
	case errors.As(err, &invalid):
		syncOperations.WithLabelValues(relation, resultValidation).Inc()
		return validation.InvalidIDs(invalid.Field, invalid.IDs)
	default:
		syncOperations.WithLabelValues(relation, resultError).Inc()
		s.logger.Error("sync failed, rolled back", "relation", relation, "owner_id", ownerID, "error", err)
		return internal.NewStoreError(syncFailureMessage(relation), err)
	}
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return internal.NewStoreError("Failed to assign role to user", err)
	}
	if !ok {
		return internal.ErrUserNotFound
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func syncFailureMessage(relation string) string {
	switch relation {
	case RelationRolePermissions:
		return "Failed to assign permissions to role"
	case RelationUserRoles:
		return "Failed to assign role to user"
	default:
		return "Failed to assign permissions to user"
	}
}

// lockPermissions keys deletes of a permission, which owns no sync relation.
const lockPermissions = "permissions"

func lockKey(relation string, ownerID int64) string {
	return fmt.Sprintf("%s:%d", relation, ownerID)
}

func actorID(ctx context.Context) int64 {
	if p, ok := internal.PrincipalFromContext(ctx); ok {
		return p.ID
	}
	return 0
}
