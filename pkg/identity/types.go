package identity

import "strings"

// RolePrefix is the normalized prefix the identity service uses for granted roles
const RolePrefix = "ROLE_"

// AdminRole is the role that marks an identity as an administrator
const AdminRole = "admin"

// Identity is the resolved principal behind an access token
type Identity struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the identity holds the required role, either verbatim
// or in its normalized ROLE_<UPPERCASED> form.
func (i *Identity) HasRole(required string) bool {
	if i == nil {
		return false
	}
	normalized := RolePrefix + strings.ToUpper(required)
	for _, held := range i.Roles {
		if held == required || held == normalized {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity holds at least one of the required roles.
// An empty requirement is satisfied by any identity.
func (i *Identity) HasAnyRole(required []string) bool {
	if i == nil {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, role := range required {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity carries the admin marker
func (i *Identity) IsAdmin() bool {
	return i.HasRole(AdminRole)
}

// Clone returns a deep copy so callers cannot mutate shared session state
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Roles = append([]string(nil), i.Roles...)
	return &c
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued tokens and the principal's profile
type LoginResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ID           int64    `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email,omitempty"`
	Roles        []string `json:"roles"`
}

// Identity derives the principal from the login payload
func (r *LoginResponse) Identity() *Identity {
	return &Identity{
		ID:       r.ID,
		Username: r.Username,
		Email:    r.Email,
		Roles:    append([]string(nil), r.Roles...),
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries a new access token and, when the service rotates it, a new refresh token
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type validateRequest struct {
	Token string `json:"token"`
}

// ValidateResponse is the result of POST /api/auth/validate
type ValidateResponse struct {
	Valid bool      `json:"valid"`
	User  *Identity `json:"user,omitempty"`
}

// UserUpdate holds the partial set of fields sent with PUT /api/users/:id.
// Nil fields are left untouched by the service.
type UserUpdate struct {
	Username *string  `json:"username,omitempty"`
	Email    *string  `json:"email,omitempty"`
	Password *string  `json:"password,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Empty reports whether the update carries no fields
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.Password == nil && u.Roles == nil
}
