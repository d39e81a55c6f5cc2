package session

import "github.com/platinummonkey/portal/pkg/identity"

// State is a snapshot of the session.
// Identity is non-nil only while AccessToken is non-empty.
type State struct {
	AccessToken  string             `json:"-"`
	RefreshToken string             `json:"-"`
	Identity     *identity.Identity `json:"identity"`
	Loading      bool               `json:"loading"`
	LastError    string             `json:"lastError,omitempty"`
}

// Authenticated reports whether a validated identity backs the session
func (s State) Authenticated() bool {
	return s.Identity != nil && s.AccessToken != ""
}

// Empty reports whether no credential is held
func (s State) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.Identity == nil
}

func (s State) clone() State {
	s.Identity = s.Identity.Clone()
	return s
}
