package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_HasAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		held     []string
		required []string
		want     bool
	}{
		{name: "normalized form matches", held: []string{"ROLE_ADMIN"}, required: []string{"admin"}, want: true},
		{name: "verbatim form matches", held: []string{"admin"}, required: []string{"admin"}, want: true},
		{name: "other role does not match", held: []string{"user"}, required: []string{"admin"}, want: false},
		{name: "empty requirement matches", held: []string{"ROLE_USER"}, required: nil, want: true},
		{name: "any of several", held: []string{"ROLE_USER"}, required: []string{"admin", "user"}, want: true},
		{name: "uppercase requirement matches normalized", held: []string{"ROLE_ADMIN"}, required: []string{"ADMIN"}, want: true},
		{name: "no roles held", held: nil, required: []string{"user"}, want: false},
		{name: "prefix is not stripped from held role", held: []string{"ROLE_ADMIN"}, required: []string{"ROLE_admin"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident := &Identity{ID: 1, Username: "u", Roles: tt.held}
			assert.Equal(t, tt.want, ident.HasAnyRole(tt.required))
		})
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	assert.True(t, (&Identity{Roles: []string{"ROLE_ADMIN"}}).IsAdmin())
	assert.True(t, (&Identity{Roles: []string{"admin"}}).IsAdmin())
	assert.False(t, (&Identity{Roles: []string{"ROLE_USER"}}).IsAdmin())

	var nilIdentity *Identity
	assert.False(t, nilIdentity.IsAdmin())
	assert.False(t, nilIdentity.HasAnyRole(nil))
}

func TestIdentity_Clone(t *testing.T) {
	original := &Identity{ID: 7, Username: "alice", Roles: []string{"ROLE_USER"}}
	clone := original.Clone()
	clone.Roles[0] = "ROLE_ADMIN"

	assert.Equal(t, "ROLE_USER", original.Roles[0])
	assert.Nil(t, (*Identity)(nil).Clone())
}

func TestLoginResponse_Identity(t *testing.T) {
	resp := &LoginResponse{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ID:           7,
		Username:     "alice",
		Email:        "alice@example.com",
		Roles:        []string{"ROLE_USER"},
	}

	assert.Equal(t, &Identity{ID: 7, Username: "alice", Email: "alice@example.com", Roles: []string{"ROLE_USER"}}, resp.Identity())
}

func TestUserUpdate_Empty(t *testing.T) {
	assert.True(t, UserUpdate{}.Empty())
	email := "a@example.com"
	assert.False(t, UserUpdate{Email: &email}.Empty())
	assert.False(t, UserUpdate{Roles: []string{}}.Empty())
}
