package user

import "strings"

type CreateUserDTO struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// UpdateUserDTO carries optional changes. Blank strings count as absent.
type UpdateUserDTO struct {
	Name                 *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Email                *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	CurrentPassword      *string `json:"current_password,omitempty"`
	Password             *string `json:"password,omitempty" validate:"omitempty,min=8"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
}

// withoutBlanks drops blank fields so validation only sees values the
// caller actually sent.
func (d UpdateUserDTO) withoutBlanks() UpdateUserDTO {
	if !filled(d.Name) {
		d.Name = nil
	}
	if !filled(d.Email) {
		d.Email = nil
	}
	if !filled(d.CurrentPassword) {
		d.CurrentPassword = nil
	}
	if !filled(d.Password) {
		d.Password = nil
	}
	if !filled(d.PasswordConfirmation) {
		d.PasswordConfirmation = nil
	}
	return d
}

// Filter narrows ListUsers. Role matches an id or a name; Permission matches
// an id or a name among direct grants only.
type Filter struct {
	Role       string
	Permission string
	Search     string
}

func filled(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
