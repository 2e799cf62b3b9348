package user

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/transport"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Access is the role and effective permission names of one user.
type Access struct {
	Roles       []string
	Permissions []string
}

func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) WithAccess(a Access) *User {
	u.Roles = nonNil(a.Roles)
	u.Permissions = nonNil(a.Permissions)
	return u
}

// Resource is the wire shape of a user.
type Resource struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func (u *User) ToResource() Resource {
	return Resource{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Roles:       nonNil(u.Roles),
		Permissions: nonNil(u.Permissions),
		CreatedAt:   transport.FormatTimestamp(u.CreatedAt),
		UpdatedAt:   transport.FormatTimestamp(u.UpdatedAt),
	}
}

func ToResources(users []*User) []Resource {
	out := make([]Resource, len(users))
	for i, u := range users {
		out[i] = u.ToResource()
	}
	return out
}

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already taken")
)

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Roles:        []string{},
		Permissions:  []string{},
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
